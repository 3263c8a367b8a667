package subpic

import (
	"testing"

	"github.com/gogpu/subpic/filter"
	"github.com/gogpu/subpic/palette"
	"github.com/gogpu/subpic/timecode"
)

func TestNewSettings_Defaults(t *testing.T) {
	s := NewSettings()
	if s.OutputFormat != FormatBDSUP || s.ColorSpace != palette.BT709 || !s.Crop || !s.FixOverlaps {
		t.Errorf("defaults = %+v", s)
	}
	if s.Filter != filter.Bilinear || s.DVDPalette == nil || s.DVDPalette.Size() != 16 {
		t.Error("filter or DVD palette missing")
	}
	if s.thresholds() != palette.DefaultThresholds {
		t.Errorf("thresholds = %+v", s.thresholds())
	}
	if s.Workers != 1 || s.MinDisplayTime != timecode.Clock/2 {
		t.Errorf("workers %d, min display time %d", s.Workers, s.MinDisplayTime)
	}
}

func TestNewSettings_Options(t *testing.T) {
	pal := palette.DefaultDVD(palette.BT601)
	s := NewSettings(
		WithLanguageIndex(2),
		WithLanguage("fr"),
		WithForcedOnly(true),
		WithWritePalette(true),
		WithOutputFormat(FormatXML),
		WithColorSpace(palette.BT601),
		WithAlphaThreshold(100),
		WithAlphaCropThreshold(1),
		WithLumaThresholds(200, 120),
		WithResolution(HD720),
		WithFrameRates(timecode.FPS24, timecode.FPS25),
		WithDelay(-4500),
		WithMinDisplayTime(0),
		WithFixOverlaps(false),
		WithFilter(filter.Mitchell),
		WithCrop(false),
		WithWorkers(8),
		WithDVDPalette(pal),
	)
	want := Settings{
		LanguageIndex:      2,
		Language:           "fr",
		ForcedOnly:         true,
		WritePalette:       true,
		OutputFormat:       FormatXML,
		ColorSpace:         palette.BT601,
		AlphaThreshold:     100,
		AlphaCropThreshold: 1,
		LumaThresholds:     [2]int{200, 120},
		Resolution:         HD720,
		SourceFPS:          timecode.FPS24,
		TargetFPS:          timecode.FPS25,
		Delay:              -4500,
		Filter:             filter.Mitchell,
		Workers:            8,
		DVDPalette:         pal,
	}
	if s != want {
		t.Errorf("settings = %+v\nwant %+v", s, want)
	}
}

func TestNewSettings_NilFilter(t *testing.T) {
	if s := NewSettings(WithFilter(nil)); s.Filter != filter.Bilinear {
		t.Errorf("nil filter replaced by %v", s.Filter)
	}
}

func TestSession_CopiesSettings(t *testing.T) {
	s := NewSettings()
	sess := NewSession(s)
	s.Crop = false
	s.Workers = 9
	if got := sess.Settings(); !got.Crop || got.Workers != 1 {
		t.Error("session sees changes to the settings it was created from")
	}

	zero := NewSession(Settings{})
	if zero.settings.Filter == nil || zero.settings.DVDPalette == nil {
		t.Error("session from zero settings lacks filter or palette")
	}
}
