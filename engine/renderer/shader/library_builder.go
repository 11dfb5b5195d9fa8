package shader

// LibraryBuilderOption is a functional option for configuring a Library via NewLibrary.
type LibraryBuilderOption func(*library)

// WithSource is an option builder that registers a WGSL program with the Library.
// When any source is registered the embedded triangle program is not loaded.
//
// Parameters:
//   - label: the module label used in logs and errors
//   - source: the WGSL source code
//
// Returns:
//   - LibraryBuilderOption: a function that applies the source option to a library
func WithSource(label, source string) LibraryBuilderOption {
	return func(l *library) {
		l.sources = append(l.sources, moduleSource{label: label, source: source})
	}
}
