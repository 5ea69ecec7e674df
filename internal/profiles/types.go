package profiles

// Item types.
const (
	TypeRemote = "remote"
	TypeLocal  = "local"
)

// Extra is the traffic quota parsed from subscription-userinfo.
type Extra struct {
	Upload   int64 `yaml:"upload" json:"upload"`
	Download int64 `yaml:"download" json:"download"`
	Total    int64 `yaml:"total" json:"total"`
	Expire   int64 `yaml:"expire" json:"expire"`
}

// Option holds per-item fetch settings.
type Option struct {
	UserAgent string `yaml:"user_agent,omitempty" json:"user_agent,omitempty"`
	// UpdateInterval is in minutes; zero disables automatic refresh.
	UpdateInterval uint64 `yaml:"update_interval,omitempty" json:"update_interval,omitempty"`
}

// Item is one entry of profiles.yaml.
type Item struct {
	UID     string  `yaml:"uid" json:"uid"`
	Type    string  `yaml:"type" json:"type"`
	Name    string  `yaml:"name" json:"name"`
	Desc    string  `yaml:"desc,omitempty" json:"desc,omitempty"`
	File    string  `yaml:"file" json:"file"`
	URL     string  `yaml:"url,omitempty" json:"url,omitempty"`
	Extra   *Extra  `yaml:"extra,omitempty" json:"extra,omitempty"`
	Option  *Option `yaml:"option,omitempty" json:"option,omitempty"`
	Updated int64   `yaml:"updated,omitempty" json:"updated,omitempty"`
}

// UpdateInterval returns the refresh period in minutes.
func (i Item) UpdateInterval() uint64 {
	if i.Option == nil {
		return 0
	}
	return i.Option.UpdateInterval
}

// Document is the profiles.yaml root.
type Document struct {
	Current string `yaml:"current,omitempty" json:"current,omitempty"`
	Items   []Item `yaml:"items" json:"items"`
}
