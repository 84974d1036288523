package detection

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Labels maps model class ids to names. Line n of a labels file names class n.
type Labels []string

// LoadLabels reads a labels file, one label per line.
func LoadLabels(path string) (Labels, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open labels file %s", path)
	}
	defer f.Close()
	return ReadLabels(f)
}

// ReadLabels parses labels from r. Blank lines keep their index with an empty name.
func ReadLabels(r io.Reader) (Labels, error) {
	var labels Labels
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name == "???" {
			name = ""
		}
		labels = append(labels, name)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read labels")
	}
	return labels, nil
}

// Name returns the label for a class id, or "" if the id is unknown.
func (l Labels) Name(id int) string {
	if id < 0 || id >= len(l) {
		return ""
	}
	return l[id]
}
