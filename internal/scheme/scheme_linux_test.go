//go:build linux

package scheme

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/outclash/outclash-go/internal/deeplink"
)

func TestDesktopEntry(t *testing.T) {
	entry := desktopEntry("/opt/outclash/outclash", deeplink.Schemes)

	assert.Contains(t, entry, "[Desktop Entry]\n")
	assert.Contains(t, entry, "Exec=\"/opt/outclash/outclash\" %u\n")
	assert.Contains(t, entry, "MimeType=x-scheme-handler/clash;x-scheme-handler/koala-clash;x-scheme-handler/outclash;\n")
	assert.Contains(t, entry, "NoDisplay=true\n")
}
