package phpsource

import "strings"

// nameResolver tracks the current namespace and class imports.
type nameResolver struct {
	namespace string
	imports   map[string]string // lower-cased alias -> fully qualified name
}

func newNameResolver() *nameResolver {
	return &nameResolver{imports: make(map[string]string)}
}

func (r *nameResolver) enterNamespace(name string) {
	r.namespace = strings.Trim(name, `\`)
	r.imports = make(map[string]string)
}

func (r *nameResolver) addImport(fqName, alias string) {
	fqName = strings.Trim(fqName, `\`)
	if alias == "" {
		alias = lastSegment(fqName)
	}

	r.imports[strings.ToLower(alias)] = fqName
}

// qualify prefixes a declared short name with the current namespace.
func (r *nameResolver) qualify(name string) string {
	if r.namespace == "" {
		return name
	}

	return r.namespace + `\` + name
}

// resolveClass resolves a class reference the way PHP does at compile time.
func (r *nameResolver) resolveClass(name string) string {
	switch {
	case name == "":
		return ""
	case strings.HasPrefix(name, `\`):
		return name[1:]
	case isSpecialClassName(name):
		return name
	}

	if rest, ok := cutPrefixFold(name, `namespace\`); ok {
		return r.qualify(rest)
	}

	first, rest, qualified := strings.Cut(name, `\`)
	if imported, ok := r.imports[strings.ToLower(first)]; ok {
		if qualified {
			return imported + `\` + rest
		}

		return imported
	}

	return r.qualify(name)
}

func isSpecialClassName(name string) bool {
	switch strings.ToLower(name) {
	case "self", "static", "parent":
		return true
	default:
		return false
	}
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return s[len(prefix):], true
	}

	return s, false
}

func lastSegment(name string) string {
	if idx := strings.LastIndex(name, `\`); idx >= 0 {
		return name[idx+1:]
	}

	return name
}

// SameClassName compares class names the way PHP does: case-insensitively
// and ignoring a leading namespace separator.
func SameClassName(a, b string) bool {
	return strings.EqualFold(strings.TrimPrefix(a, `\`), strings.TrimPrefix(b, `\`))
}
