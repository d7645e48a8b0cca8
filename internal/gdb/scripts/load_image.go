package scripts

import (
	_ "embed"
	"strings"
)

//go:embed templates/load_image.gdb.tmpl
var loadImageTemplate string

// LoadImageScript restores a replay image into target RAM and calls its
// entry point with GDB's inferior call machinery, so the routine returns
// to GDB through lr.
type LoadImageScript struct {
	openocdHost string
	openocdPort int
	imageFile   string
	loadBase    uint32
	size        int
	resume      bool
}

// NewLoadImageScript creates a load script for an image file already
// written to disk.
func NewLoadImageScript(openocdHost string, openocdPort int, imageFile string, loadBase uint32, size int, resume bool) *LoadImageScript {
	return &LoadImageScript{
		openocdHost: openocdHost,
		openocdPort: openocdPort,
		imageFile:   imageFile,
		loadBase:    loadBase,
		size:        size,
		resume:      resume,
	}
}

// Name implements Script.Name
func (s *LoadImageScript) Name() string {
	return "load_image"
}

// Template implements Script.Template
func (s *LoadImageScript) Template() string {
	return loadImageTemplate
}

// Params implements Script.Params
func (s *LoadImageScript) Params() map[string]interface{} {
	return map[string]interface{}{
		"OpenOCDHost": s.openocdHost,
		"OpenOCDPort": s.openocdPort,
		"ImageFile":   s.imageFile,
		"LoadBase":    hex(uint64(s.loadBase)),
		"Entry":       hex(uint64(s.loadBase)),
		"Size":        s.size,
		"Resume":      s.resume,
	}
}

// Parse implements Script.Parse
func (s *LoadImageScript) Parse(output string) (*Result, error) {
	result := NewResult()
	result.Steps = parseSteps(output)

	returned := false
	for _, line := range strings.Split(output, "\n") {
		if strings.TrimSpace(line) == "RETURNED" {
			returned = true
			break
		}
	}
	result.SetData("returned", returned)

	if !succeeded(output) || !returned {
		result.Error = failure("image run", output)
		return result, nil
	}
	result.Success = true
	result.BytesWritten = s.size
	return result, nil
}
