package plugin

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/andrei-cloud/go_protoop/pkg/arena"
	"github.com/andrei-cloud/go_protoop/pkg/protoop"
	"github.com/rs/zerolog/log"
)

// ErrInvalidManifest is wrapped by every manifest validation failure.
var ErrInvalidManifest = errors.New("invalid plugin manifest")

// Runtime names the engine executing a plugin.
type Runtime string

const (
	RuntimeWASM Runtime = "wasm"
	RuntimeLua  Runtime = "lua"
)

// Anchor states how a plugin implementation attaches to an operation.
type Anchor string

const (
	// AnchorReplace substitutes the core implementation.
	AnchorReplace Anchor = "replace"
	// AnchorPre observes the call before the primary implementation runs.
	AnchorPre Anchor = "pre"
	// AnchorPost observes the call after the primary implementation returns.
	AnchorPost Anchor = "post"
)

// Binding is one [[protoop]] entry of a manifest.
type Binding struct {
	ID     string `toml:"id"`
	Export string `toml:"export"`
	Anchor Anchor `toml:"anchor"`

	Opcode protoop.Opcode `toml:"-"`
}

// Manifest describes a plugin on disk.
type Manifest struct {
	Name        string    `toml:"name"`
	Version     string    `toml:"version"`
	Description string    `toml:"description"`
	Author      string    `toml:"author"`
	Runtime     Runtime   `toml:"runtime"`
	Module      string    `toml:"module"`
	Memory      uint32    `toml:"memory"`
	Protoops    []Binding `toml:"protoop"`

	// Dir is the directory the manifest was read from.
	Dir string `toml:"-"`
}

// LoadManifest reads and validates the manifest at path.
func LoadManifest(path string) (*Manifest, error) {
	var m Manifest
	md, err := toml.DecodeFile(path, &m)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidManifest, path, err)
	}
	warnUndecoded(path, md)

	m.Dir = filepath.Dir(path)
	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

// ParseManifest decodes and validates a manifest held in memory.
func ParseManifest(data string) (*Manifest, error) {
	var m Manifest
	md, err := toml.Decode(data, &m)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	warnUndecoded("<inline>", md)

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

func warnUndecoded(path string, md toml.MetaData) {
	for _, key := range md.Undecoded() {
		log.Warn().
			Str("event", "manifest_unknown_key").
			Str("manifest", path).
			Str("key", key.String()).
			Msg("ignoring unknown manifest key")
	}
}

// Validate checks required fields, fills defaults and resolves opcodes.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidManifest)
	}

	m.Runtime = Runtime(strings.ToLower(string(m.Runtime)))
	switch m.Runtime {
	case RuntimeWASM, RuntimeLua:
	case "":
		m.Runtime = RuntimeWASM
	default:
		return fmt.Errorf("%w: %s: unknown runtime %q", ErrInvalidManifest, m.Name, m.Runtime)
	}

	if m.Module == "" {
		ext := ".wasm"
		if m.Runtime == RuntimeLua {
			ext = ".lua"
		}
		m.Module = m.Name + ext
	}

	if len(m.Protoops) == 0 {
		return fmt.Errorf("%w: %s: no protoop bindings", ErrInvalidManifest, m.Name)
	}

	replaced := make(map[protoop.Opcode]bool)
	for i := range m.Protoops {
		b := &m.Protoops[i]

		op, err := protoop.ParseOpcode(b.ID)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidManifest, m.Name, err)
		}
		b.Opcode = op

		if b.Export == "" {
			b.Export = op.String()
		}

		b.Anchor = Anchor(strings.ToLower(string(b.Anchor)))
		switch b.Anchor {
		case "":
			b.Anchor = AnchorReplace
		case AnchorReplace, AnchorPre, AnchorPost:
		default:
			return fmt.Errorf("%w: %s: unknown anchor %q for %s",
				ErrInvalidManifest, m.Name, b.Anchor, b.ID)
		}

		if b.Anchor == AnchorReplace {
			if replaced[op] {
				return fmt.Errorf("%w: %s: %s replaced twice", ErrInvalidManifest, m.Name, op)
			}
			replaced[op] = true
		}
	}

	return nil
}

// ArenaSize returns the arena capacity requested by the manifest, falling
// back to fallback and then to arena.DefaultPluginMemory.
func (m *Manifest) ArenaSize(fallback uint32) uint32 {
	switch {
	case m.Memory != 0:
		return m.Memory
	case fallback != 0:
		return fallback
	default:
		return arena.DefaultPluginMemory
	}
}

// ModulePath returns the module location resolved against the manifest
// directory.
func (m *Manifest) ModulePath() string {
	if filepath.IsAbs(m.Module) {
		return m.Module
	}

	return filepath.Join(m.Dir, m.Module)
}

// Info returns the registry metadata of the manifest.
func (m *Manifest) Info() *Info {
	ops := make([]string, 0, len(m.Protoops))
	for _, b := range m.Protoops {
		ops = append(ops, fmt.Sprintf("%s:%s", b.Opcode, b.Anchor))
	}

	return &Info{
		Name:        m.Name,
		Version:     m.Version,
		Description: m.Description,
		Author:      m.Author,
		Runtime:     m.Runtime,
		Memory:      m.Memory,
		Protoops:    ops,
	}
}
