package config

// LogConfig represents logging configuration
type LogConfig struct {
	Level         string `json:"level" yaml:"level" mapstructure:"level"`
	EnableFile    bool   `json:"enable_file" yaml:"enable_file" mapstructure:"enable_file"`
	EnableConsole bool   `json:"enable_console" yaml:"enable_console" mapstructure:"enable_console"`
	Filename      string `json:"filename" yaml:"filename" mapstructure:"filename"`
	LogDir        string `json:"log_dir,omitempty" yaml:"log_dir,omitempty" mapstructure:"log_dir"` // Custom log directory
	MaxSize       int    `json:"max_size" yaml:"max_size" mapstructure:"max_size"`                   // MB
	MaxBackups    int    `json:"max_backups" yaml:"max_backups" mapstructure:"max_backups"`          // number of backup files
	MaxAge        int    `json:"max_age" yaml:"max_age" mapstructure:"max_age"`                      // days
	Compress      bool   `json:"compress" yaml:"compress" mapstructure:"compress"`
	JSONFormat    bool   `json:"json_format" yaml:"json_format" mapstructure:"json_format"`
}

// Verge holds the application's own persisted settings (verge.yaml).
// Pointer fields distinguish "unset" from the zero value so that Patch only
// touches the fields a caller provided.
type Verge struct {
	EnableSilentStart         *bool    `yaml:"enable_silent_start,omitempty" mapstructure:"enable_silent_start"`
	EnableRandomPort          *bool    `yaml:"enable_random_port,omitempty" mapstructure:"enable_random_port"`
	VergeMixedPort            *uint16  `yaml:"verge_mixed_port,omitempty" mapstructure:"verge_mixed_port"`
	AutoCloseConnection       *bool    `yaml:"auto_close_connection,omitempty" mapstructure:"auto_close_connection"`
	EnableAutoLightWeightMode *bool    `yaml:"enable_auto_light_weight_mode,omitempty" mapstructure:"enable_auto_light_weight_mode"`
	AutoLightWeightMinutes    *uint64  `yaml:"auto_light_weight_minutes,omitempty" mapstructure:"auto_light_weight_minutes"`
	EnableSystemProxy         *bool    `yaml:"enable_system_proxy,omitempty" mapstructure:"enable_system_proxy"`
	EnableProxyGuard          *bool    `yaml:"enable_proxy_guard,omitempty" mapstructure:"enable_proxy_guard"`
	ProxyGuardDuration        *uint64  `yaml:"proxy_guard_duration,omitempty" mapstructure:"proxy_guard_duration"`
	SystemProxyBypass         *string  `yaml:"system_proxy_bypass,omitempty" mapstructure:"system_proxy_bypass"`
	StartupScript             *string  `yaml:"startup_script,omitempty" mapstructure:"startup_script"`
	EnableGlobalHotkey        *bool    `yaml:"enable_global_hotkey,omitempty" mapstructure:"enable_global_hotkey"`
	Hotkeys                   []string `yaml:"hotkeys,omitempty" mapstructure:"hotkeys"`
	EnableTunMode             *bool    `yaml:"enable_tun_mode,omitempty" mapstructure:"enable_tun_mode"`
	EnableDNSSettings         *bool    `yaml:"enable_dns_settings,omitempty" mapstructure:"enable_dns_settings"`

	Logging *LogConfig `yaml:"logging,omitempty" mapstructure:"logging"`
}

// DefaultVerge returns the settings a fresh installation starts with.
func DefaultVerge() *Verge {
	return &Verge{
		EnableSilentStart:         BoolPtr(false),
		EnableRandomPort:          BoolPtr(false),
		AutoCloseConnection:       BoolPtr(true),
		EnableAutoLightWeightMode: BoolPtr(false),
		AutoLightWeightMinutes:    Uint64Ptr(10),
		EnableSystemProxy:         BoolPtr(false),
		EnableProxyGuard:          BoolPtr(false),
		ProxyGuardDuration:        Uint64Ptr(30),
		EnableGlobalHotkey:        BoolPtr(true),
		EnableTunMode:             BoolPtr(false),
		EnableDNSSettings:         BoolPtr(false),
	}
}

// Patch copies every non-nil field of p onto v.
func (v *Verge) Patch(p Verge) {
	if p.EnableSilentStart != nil {
		v.EnableSilentStart = p.EnableSilentStart
	}
	if p.EnableRandomPort != nil {
		v.EnableRandomPort = p.EnableRandomPort
	}
	if p.VergeMixedPort != nil {
		v.VergeMixedPort = p.VergeMixedPort
	}
	if p.AutoCloseConnection != nil {
		v.AutoCloseConnection = p.AutoCloseConnection
	}
	if p.EnableAutoLightWeightMode != nil {
		v.EnableAutoLightWeightMode = p.EnableAutoLightWeightMode
	}
	if p.AutoLightWeightMinutes != nil {
		v.AutoLightWeightMinutes = p.AutoLightWeightMinutes
	}
	if p.EnableSystemProxy != nil {
		v.EnableSystemProxy = p.EnableSystemProxy
	}
	if p.EnableProxyGuard != nil {
		v.EnableProxyGuard = p.EnableProxyGuard
	}
	if p.ProxyGuardDuration != nil {
		v.ProxyGuardDuration = p.ProxyGuardDuration
	}
	if p.SystemProxyBypass != nil {
		v.SystemProxyBypass = p.SystemProxyBypass
	}
	if p.StartupScript != nil {
		v.StartupScript = p.StartupScript
	}
	if p.EnableGlobalHotkey != nil {
		v.EnableGlobalHotkey = p.EnableGlobalHotkey
	}
	if p.Hotkeys != nil {
		v.Hotkeys = append([]string(nil), p.Hotkeys...)
	}
	if p.EnableTunMode != nil {
		v.EnableTunMode = p.EnableTunMode
	}
	if p.EnableDNSSettings != nil {
		v.EnableDNSSettings = p.EnableDNSSettings
	}
	if p.Logging != nil {
		l := *p.Logging
		v.Logging = &l
	}
}

// Clone returns a deep copy.
func (v *Verge) Clone() *Verge {
	return &Verge{
		EnableSilentStart:         clonePtr(v.EnableSilentStart),
		EnableRandomPort:          clonePtr(v.EnableRandomPort),
		VergeMixedPort:            clonePtr(v.VergeMixedPort),
		AutoCloseConnection:       clonePtr(v.AutoCloseConnection),
		EnableAutoLightWeightMode: clonePtr(v.EnableAutoLightWeightMode),
		AutoLightWeightMinutes:    clonePtr(v.AutoLightWeightMinutes),
		EnableSystemProxy:         clonePtr(v.EnableSystemProxy),
		EnableProxyGuard:          clonePtr(v.EnableProxyGuard),
		ProxyGuardDuration:        clonePtr(v.ProxyGuardDuration),
		SystemProxyBypass:         clonePtr(v.SystemProxyBypass),
		StartupScript:             clonePtr(v.StartupScript),
		EnableGlobalHotkey:        clonePtr(v.EnableGlobalHotkey),
		Hotkeys:                   append([]string(nil), v.Hotkeys...),
		EnableTunMode:             clonePtr(v.EnableTunMode),
		EnableDNSSettings:         clonePtr(v.EnableDNSSettings),
		Logging:                   clonePtr(v.Logging),
	}
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool { return &b }

// Uint64Ptr returns a pointer to n.
func Uint64Ptr(n uint64) *uint64 { return &n }

// Uint16Ptr returns a pointer to n.
func Uint16Ptr(n uint16) *uint16 { return &n }

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }

// BoolValue dereferences p, returning def when p is nil.
func BoolValue(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// Uint64Value dereferences p, returning def when p is nil.
func Uint64Value(p *uint64, def uint64) uint64 {
	if p == nil {
		return def
	}
	return *p
}

// StringValue dereferences p, returning "" when p is nil.
func StringValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
