package types

// Asset is an emitted file as declared in the build stats.
type Asset struct {
	Name string
	Size int64
}

// ModuleDescriptor is a single module entry as reported by the bundler.
// A nil Size marks a descriptor that lacks required fields.
type ModuleDescriptor struct {
	ID         string
	Identifier string
	Name       string
	Size       *int64
	Modules    []ModuleDescriptor // concatenated sub-modules
}

// Chunk is an independently emitted output unit of the build.
type Chunk struct {
	ID      string
	Names   []string
	Files   []string
	Modules []ModuleDescriptor
}

// BuildMetadata holds the materialized stats of one build.
type BuildMetadata struct {
	Chunks []Chunk
	Assets map[string]Asset
}

// Chunk returns the chunk with the given id.
func (m *BuildMetadata) Chunk(id string) (Chunk, bool) {
	if m == nil {
		return Chunk{}, false
	}
	for _, c := range m.Chunks {
		if c.ID == id {
			return c, true
		}
	}
	return Chunk{}, false
}

// LogicalModule is a module after duplicate and concatenation resolution.
// DeclaredSize counts the module's own bytes only; the bytes of its
// concatenated children are held by the children themselves.
type LogicalModule struct {
	Path         string
	ID           string
	Source       string // resource path used to match source map entries
	DeclaredSize int64
	Synthetic    bool
	Children     []LogicalModule
}

// Total returns the declared size of the module including its children.
func (m LogicalModule) Total() int64 {
	total := m.DeclaredSize
	for _, c := range m.Children {
		total += c.Total()
	}
	return total
}

// SizedModule is a LogicalModule with its resolved sizes. Sizes covers the
// module's own bytes only.
type SizedModule struct {
	Path       string
	Synthetic  bool
	Sizes      SizeTriple
	Attributed bool
	Children   []SizedModule
}

// Total returns the sizes of the module including its children.
func (m SizedModule) Total() SizeTriple {
	total := m.Sizes
	for _, c := range m.Children {
		total = total.Add(c.Total())
	}
	return total
}
