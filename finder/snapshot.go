package finder

import (
	"fmt"
	"strconv"

	settings "github.com/goliatone/go-settings"
	"github.com/goliatone/go-settings/internal/hydrate"
	"github.com/goliatone/go-settings/pkg/music"
)

// Snapshot is a fixed copy of one finder's resolved options. Search workers
// receive a Snapshot instead of a dictionary so they never read state that
// an editor is still changing.
type Snapshot struct {
	Instrument        string     `json:"instrument"`
	Tuning            string     `json:"tuning"`
	RootNote          music.Note `json:"rootnote"`
	Quality           string     `json:"quality,omitempty"`
	Scale             string     `json:"scale,omitempty"`
	NumFrets          int32      `json:"numfrets,string"`
	MaxReach          int32      `json:"maxreach,string"`
	MaxFret           int32      `json:"maxfret,string"`
	AllowOpenStrings  bool       `json:"allowopenstrings,string"`
	AllowMutedStrings bool       `json:"allowmutedstrings,string"`
	ResultLimit       int32      `json:"resultlimit,string"`
}

var snapshotDecoder = hydrate.NewDecoder(
	hydrate.WithDefaults[Snapshot](map[string]string{
		KeyInstrument:        DefaultInstrument,
		KeyTuning:            DefaultTuning,
		KeyRootNote:          music.C.String(),
		KeyQuality:           "major",
		KeyScale:             "major",
		KeyNumFrets:          strconv.Itoa(DefaultNumFrets),
		KeyMaxReach:          strconv.Itoa(DefaultMaxReach),
		KeyMaxFret:           strconv.Itoa(DefaultMaxFret),
		KeyAllowOpenStrings:  "true",
		KeyAllowMutedStrings: "true",
		KeyResultLimit:       strconv.Itoa(DefaultResultLimit),
	}),
	hydrate.WithPostHook[Snapshot](checkSnapshot),
)

// Snapshot resolves every option of the finder through the chain.
func (o *Options) Snapshot() (Snapshot, error) {
	snapshot, err := snapshotDecoder.Decode(o.dict, o.kind.Prefix())
	if err != nil {
		return Snapshot{}, fmt.Errorf("finder: %s snapshot: %w", o.kind, err)
	}
	if o.kind == KindScale {
		snapshot.Quality = ""
	} else {
		snapshot.Scale = ""
	}
	return snapshot, nil
}

func checkSnapshot(_ hydrate.Context, snapshot *Snapshot) error {
	if snapshot.NumFrets < 0 || snapshot.MaxReach < 0 || snapshot.MaxFret < 0 {
		return fmt.Errorf("%w: fret counts must not be negative", settings.ErrArgumentInvalid)
	}
	if snapshot.MaxReach > snapshot.NumFrets {
		return fmt.Errorf("%w: max reach %d exceeds %d frets", settings.ErrArgumentInvalid, snapshot.MaxReach, snapshot.NumFrets)
	}
	if snapshot.ResultLimit <= 0 {
		return fmt.Errorf("%w: result limit must be positive", settings.ErrArgumentInvalid)
	}
	return nil
}
