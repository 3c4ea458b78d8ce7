package lsc

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/lscrefer/internal/monitoring"
	"github.com/sells-group/lscrefer/internal/refdata"
	"github.com/sells-group/lscrefer/pkg/arcgis"
)

// Index joins the program directory with the service-area features. The
// three mappings share *Program values and are never modified after
// BuildIndex returns; callers must not mutate what the lookups return.
type Index struct {
	byArea  map[string]*Program
	byRIN   map[string]*Program
	byServA map[string]*Program

	generation string
	builtAt    time.Time
}

// BuildIndex constructs a fresh Index. Features whose area is not in the
// directory are logged and skipped. A single known bad record for MA-4 is
// corrected before lookup.
func BuildIndex(directory []refdata.DirectoryEntry, features []ServiceAreaFeature) *Index {
	idx := newIndex(directory)
	log := zap.L().With(zap.String("generation", idx.generation))

	if len(features) == 0 {
		log.Warn("lsc: service-area data is empty, region lookups will fail until reload",
			zap.Int("programs", len(idx.byArea)),
		)
		return idx
	}

	unmatched := 0
	for _, f := range features {
		f = correctFeature(f)
		prog, ok := idx.byArea[f.ServArea1]
		if !ok {
			unmatched++
			log.Warn("lsc: service area not in program directory", zap.String("service_area", f.ServArea1))
			continue
		}
		prog.RIN = f.RIN
		prog.ServA = f.ServA
		if f.RIN != "" {
			idx.byRIN[f.RIN] = prog
		}
		if f.ServA != "" {
			idx.byServA[f.ServA] = prog
		}
	}

	log.Info("lsc: program index built",
		zap.Int("programs", len(idx.byArea)),
		zap.Int("features", len(features)),
		zap.Int("unmatched", unmatched),
		zap.Int("by_rin", len(idx.byRIN)),
		zap.Int("by_serv_a", len(idx.byServA)),
	)
	return idx
}

func newIndex(directory []refdata.DirectoryEntry) *Index {
	idx := &Index{
		byArea:     make(map[string]*Program, len(directory)),
		byRIN:      make(map[string]*Program),
		byServA:    make(map[string]*Program),
		generation: uuid.NewString(),
		builtAt:    time.Now().UTC(),
	}
	for _, e := range directory {
		area := strings.TrimSpace(e.ServAreaID)
		idx.byArea[area] = &Program{
			ServiceArea: area,
			Name:        strings.TrimSpace(e.LegalName),
			Phone:       strings.TrimSpace(e.Phone),
			URL:         strings.TrimSpace(e.URL),
		}
	}
	return idx
}

// correctFeature patches the MA-4 record, whose primary and alternate ids
// are swapped in the remote layer.
func correctFeature(f ServiceAreaFeature) ServiceAreaFeature {
	if f.ServArea == "MA-4" {
		f.ServArea = "MA04"
		f.ServArea1 = "MA-4"
		f.ServA = "MA04"
	}
	return f
}

// FeaturesFromSet converts bulk layer records. Records without a ServArea_1
// value are logged and dropped.
func FeaturesFromSet(fs *arcgis.FeatureSet) []ServiceAreaFeature {
	if fs == nil {
		return nil
	}
	out := make([]ServiceAreaFeature, 0, len(fs.Features))
	for i, f := range fs.Features {
		area1, ok := f.Attributes.Text("ServArea_1")
		if !ok {
			zap.L().Warn("lsc: service-area feature has no ServArea_1", zap.Int("feature", i))
			continue
		}
		area, _ := f.Attributes.Text("ServArea")
		rin, _ := f.Attributes.Text("RIN")
		servA, _ := f.Attributes.Text("servA")
		out = append(out, ServiceAreaFeature{
			ServArea:  area,
			ServArea1: area1,
			RIN:       rin,
			ServA:     servA,
		})
	}
	return out
}

// ByArea returns the program for a directory service-area id.
func (idx *Index) ByArea(area string) (*Program, bool) {
	p, ok := idx.byArea[area]
	return p, ok
}

// ByRIN returns the program for a region code.
func (idx *Index) ByRIN(rin string) (*Program, bool) {
	p, ok := idx.byRIN[rin]
	return p, ok
}

// ByServA returns the program for a short code.
func (idx *Index) ByServA(servA string) (*Program, bool) {
	p, ok := idx.byServA[servA]
	return p, ok
}

// Len returns the number of programs in the directory.
func (idx *Index) Len() int { return len(idx.byArea) }

// Generation identifies this build.
func (idx *Index) Generation() string { return idx.generation }

// BuiltAt is when the index was built.
func (idx *Index) BuiltAt() time.Time { return idx.builtAt }

// Programs returns copies of every program ordered by service-area id.
func (idx *Index) Programs() []Program {
	out := make([]Program, 0, len(idx.byArea))
	for _, p := range idx.byArea {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ServiceArea < out[j].ServiceArea })
	return out
}

// Stats summarizes the index for monitoring.
func (idx *Index) Stats() monitoring.IndexStats {
	return monitoring.IndexStats{
		Generation: idx.generation,
		BuiltAt:    idx.builtAt,
		ByArea:     len(idx.byArea),
		ByRIN:      len(idx.byRIN),
		ByServA:    len(idx.byServA),
	}
}
