// Package refdata loads the bundled reference files: the legal-aid program
// directory and the poverty-guideline table. Either file can be replaced by
// a path on disk.
package refdata

import (
	"embed"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lscrefer/internal/poverty"
)

//go:embed data/programs.json data/poverty.yml
var bundled embed.FS

const (
	bundledPrograms = "data/programs.json"
	bundledPoverty  = "data/poverty.yml"
)

// DirectoryEntry is one program in the program directory, keyed by its
// service-area identifier.
type DirectoryEntry struct {
	ServAreaID string `json:"Serv_Area_ID"`
	LegalName  string `json:"R_Legalname"`
	Phone      string `json:"Local_800"`
	URL        string `json:"Web_URL"`
}

// LoadPrograms reads the program directory from path, or the bundled copy
// when path is empty.
func LoadPrograms(path string) ([]DirectoryEntry, error) {
	data, err := read(path, bundledPrograms)
	if err != nil {
		return nil, eris.Wrap(err, "refdata: read programs")
	}
	return ParsePrograms(data)
}

// ParsePrograms decodes a JSON program directory.
func ParsePrograms(data []byte) ([]DirectoryEntry, error) {
	var entries []DirectoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, eris.Wrap(err, "refdata: parse programs")
	}
	for i, e := range entries {
		if e.ServAreaID == "" {
			return nil, eris.Errorf("refdata: program %d has no Serv_Area_ID", i)
		}
	}
	return entries, nil
}

// LoadPoverty reads the poverty-guideline table from path, or the bundled
// copy when path is empty.
func LoadPoverty(path string) (*poverty.Table, error) {
	data, err := read(path, bundledPoverty)
	if err != nil {
		return nil, eris.Wrap(err, "refdata: read poverty table")
	}
	return poverty.Parse(data)
}

func read(path, fallback string) ([]byte, error) {
	if path == "" {
		return bundled.ReadFile(fallback)
	}
	zap.L().Debug("refdata: loading from disk", zap.String("path", path))
	return os.ReadFile(path)
}
