package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"

	"github.com/matzehuels/revgraph/pkg/errors"
	"github.com/matzehuels/revgraph/pkg/revision"
)

// Format identifies a manifest encoding.
type Format string

const (
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
)

// FormatFromPath picks the encoding from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".json":
		return FormatJSON, nil
	}
	return "", errors.New(errors.ErrCodeInvalidManifest, "unsupported manifest extension %q (want .toml or .json)", filepath.Ext(path))
}

// Script is one migration script as written in a manifest.
type Script struct {
	ID            string   `toml:"id" json:"id"`
	DownRevisions []string `toml:"down_revisions,omitempty" json:"down_revisions,omitempty"`
	DependsOn     []string `toml:"depends_on,omitempty" json:"depends_on,omitempty"`
	BranchLabels  []string `toml:"branch_labels,omitempty" json:"branch_labels,omitempty"`
	Message       string   `toml:"message,omitempty" json:"message,omitempty"`
	Upgrade       string   `toml:"upgrade,omitempty" json:"upgrade,omitempty"`
	Downgrade     string   `toml:"downgrade,omitempty" json:"downgrade,omitempty"`
}

// Manifest is an ordered list of scripts.
type Manifest struct {
	Revisions []Script `toml:"revision" json:"revisions"`
}

type jsonManifest struct {
	Revisions []Script `json:"revisions"`
}

// Read decodes a manifest in the given format from r.
func Read(r io.Reader, format Format) (*Manifest, error) {
	var m Manifest
	switch format {
	case FormatTOML:
		if _, err := toml.NewDecoder(r).Decode(&m); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "decode toml")
		}
	case FormatJSON:
		var jm jsonManifest
		if err := json.NewDecoder(r).Decode(&jm); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "decode json")
		}
		m.Revisions = jm.Revisions
	default:
		return nil, errors.New(errors.ErrCodeUnsupported, "unknown manifest format %q", format)
	}
	for i, s := range m.Revisions {
		if s.ID == "" {
			return nil, errors.New(errors.ErrCodeInvalidManifest, "revision #%d has no id", i+1)
		}
	}
	return &m, nil
}

// Load reads the manifest at path, choosing the format by extension.
func Load(path string) (*Manifest, error) {
	if err := errors.ValidatePath(path); err != nil {
		return nil, err
	}
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	m, err := Read(f, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Write encodes the manifest in the given format to w.
func (m *Manifest) Write(w io.Writer, format Format) error {
	switch format {
	case FormatTOML:
		if err := toml.NewEncoder(w).Encode(m); err != nil {
			return fmt.Errorf("encode: %w", err)
		}
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(jsonManifest{Revisions: m.Revisions}); err != nil {
			return fmt.Errorf("encode: %w", err)
		}
	default:
		return errors.New(errors.ErrCodeUnsupported, "unknown manifest format %q", format)
	}
	return nil
}

// Save writes the manifest to path atomically, choosing the format by
// extension.
func (m *Manifest) Save(path string) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := m.Write(&buf, format); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Append adds a script after checking that its id is new, its labels are
// well formed and its parents exist in the manifest.
func (m *Manifest) Append(s Script) error {
	if s.ID == "" {
		return errors.New(errors.ErrCodeInvalidManifest, "script has no id")
	}
	known := make(map[string]bool, len(m.Revisions))
	for _, r := range m.Revisions {
		known[r.ID] = true
	}
	if known[s.ID] {
		return errors.New(errors.ErrCodeInvalidManifest, "revision %s already exists", s.ID)
	}
	for _, d := range s.DownRevisions {
		if !known[d] {
			return errors.New(errors.ErrCodeInvalidManifest, "down revision %s of %s is not in the manifest", d, s.ID)
		}
	}
	for _, l := range s.BranchLabels {
		if err := errors.ValidateBranchLabel(l); err != nil {
			return err
		}
	}
	m.Revisions = append(m.Revisions, s)
	return nil
}

// RevisionList converts the scripts into graph revisions. The payload of each
// revision is a pointer to its Script.
func (m *Manifest) RevisionList() ([]*revision.Revision, error) {
	out := make([]*revision.Revision, 0, len(m.Revisions))
	for i := range m.Revisions {
		s := &m.Revisions[i]
		out = append(out, &revision.Revision{
			ID:            s.ID,
			DownRevisions: slices.Clone(s.DownRevisions),
			Dependencies:  slices.Clone(s.DependsOn),
			BranchLabels:  slices.Clone(s.BranchLabels),
			Doc:           s.Message,
			Payload:       s,
		})
	}
	return out, nil
}

// Generator adapts the manifest file at path into a revision generator. The
// file is read when the map is first built.
func Generator(path string) revision.Generator {
	return func() ([]*revision.Revision, error) {
		m, err := Load(path)
		if err != nil {
			return nil, err
		}
		return m.RevisionList()
	}
}

// NewID returns a fresh 12 character hex revision identifier.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// ScriptOf returns the script carried by a revision built from a manifest,
// or nil.
func ScriptOf(r *revision.Revision) *Script {
	if r == nil {
		return nil
	}
	s, _ := r.Payload.(*Script)
	return s
}
