//go:build !nogui && !headless

package hotkey

import nativehk "golang.design/x/hotkey"

var nativeModifiers = map[string]nativehk.Modifier{
	"Alt":              nativehk.ModOption,
	"CommandOrControl": nativehk.ModCmd,
	"Control":          nativehk.ModCtrl,
	"Shift":            nativehk.ModShift,
	"Super":            nativehk.ModCmd,
}
