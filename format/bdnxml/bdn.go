// Package bdnxml reads and writes Sony BDN XML subtitle descriptions: an
// XML event list with frame based timecodes and one PNG file per caption.
package bdnxml

import (
	"encoding/xml"
	"strings"
)

// Version is the BDN format version written by [Writer].
const Version = "0.93"

type document struct {
	XMLName     xml.Name    `xml:"BDN"`
	Version     string      `xml:"Version,attr"`
	Description description `xml:"Description"`
	Events      []event     `xml:"Events>Event"`
}

type description struct {
	Name     nameInfo   `xml:"Name"`
	Language langInfo   `xml:"Language"`
	Format   formatInfo `xml:"Format"`
	Events   eventsInfo `xml:"Events"`
}

type nameInfo struct {
	Title   string `xml:"Title,attr"`
	Content string `xml:"Content,attr"`
}

type langInfo struct {
	Code string `xml:"Code,attr"`
}

type formatInfo struct {
	VideoFormat string `xml:"VideoFormat,attr"`
	FrameRate   string `xml:"FrameRate,attr"`
	DropFrame   string `xml:"DropFrame,attr"`
}

type eventsInfo struct {
	FirstEventInTC string `xml:"FirstEventInTC,attr"`
	LastEventOutTC string `xml:"LastEventOutTC,attr"`
	ContentInTC    string `xml:"ContentInTC,attr"`
	ContentOutTC   string `xml:"ContentOutTC,attr"`
	NumberofEvents int    `xml:"NumberofEvents,attr"`
	Type           string `xml:"Type,attr"`
}

type event struct {
	InTC     string    `xml:"InTC,attr"`
	OutTC    string    `xml:"OutTC,attr"`
	Forced   string    `xml:"Forced,attr"`
	Graphics []graphic `xml:"Graphic"`
}

type graphic struct {
	Width  int    `xml:"Width,attr"`
	Height int    `xml:"Height,attr"`
	X      int    `xml:"X,attr"`
	Y      int    `xml:"Y,attr"`
	File   string `xml:",chardata"`
}

// videoFormats maps the VideoFormat attribute to the frame size.
var videoFormats = []struct {
	name          string
	width, height int
}{
	{"480i", 720, 480},
	{"480p", 720, 480},
	{"576i", 720, 576},
	{"576p", 720, 576},
	{"720p", 1280, 720},
	{"1080i", 1920, 1080},
	{"1080p", 1920, 1080},
}

// frameSize returns the frame size of a VideoFormat value.
func frameSize(format string) (int, int, bool) {
	for _, f := range videoFormats {
		if strings.EqualFold(f.name, strings.TrimSpace(format)) {
			return f.width, f.height, true
		}
	}
	return 0, 0, false
}

// videoFormat returns the VideoFormat value for a frame height.
func videoFormat(height int) string {
	switch height {
	case 480:
		return "480i"
	case 576:
		return "576i"
	case 720:
		return "720p"
	}
	return "1080p"
}

func parseBool(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "true")
}

func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
