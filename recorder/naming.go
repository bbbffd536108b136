package recorder

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/Masterminds/sprig"
)

// MaxAutoIncrement is the highest numeric suffix probed for a free name.
const MaxAutoIncrement = 999

var ErrNameExhausted = errors.New("no free file name left")

type pathData struct {
	Time time.Time
}

// ExpandPath evaluates a destination path template. Paths without template
// actions are returned unchanged. Templates have the sprig functions
// available, and .Time is the moment of expansion, e.g.
//
//	takes/{{ now | date "2006-01-02" }}/take.mid
//	takes/{{ .Time.Unix }}.mid
func ExpandPath(path string) (string, error) {
	if !strings.Contains(path, "{{") {
		return path, nil
	}
	tmpl, err := template.New("path").Funcs(sprig.TxtFuncMap()).Parse(path)
	if err != nil {
		return "", fmt.Errorf("could not parse path template %q: %w", path, err)
	}
	var b bytes.Buffer
	if err := tmpl.Execute(&b, pathData{Time: time.Now()}); err != nil {
		return "", fmt.Errorf("could not expand path template %q: %w", path, err)
	}
	return b.String(), nil
}

// FreePath returns path itself if nothing exists there; otherwise it probes
// base-001.ext, base-002.ext, ... and returns the first that does not exist.
func FreePath(path string) (string, error) {
	if !exists(path) {
		return path, nil
	}
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for i := 1; i <= MaxAutoIncrement; i++ {
		p := fmt.Sprintf("%s-%03d%s", base, i, ext)
		if !exists(p) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %s-001%s to %s-%03d%s all exist", ErrNameExhausted, base, ext, base, MaxAutoIncrement, ext)
}

// OutputPath expands the template and, if autoIncrement is set, picks a name
// that does not overwrite an existing file.
func OutputPath(path string, autoIncrement bool) (string, error) {
	p, err := ExpandPath(path)
	if err != nil {
		return "", err
	}
	if p == "" {
		return "", errors.New("destination path expanded to an empty string")
	}
	if !autoIncrement {
		return p, nil
	}
	return FreePath(p)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, os.ErrNotExist)
}
