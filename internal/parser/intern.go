package parser

// StringIntern deduplicates repeated strings so equal entity tokens and
// lock names share one backing allocation. Each parse pass owns its own
// interner; there is no pool shared across passes.
type StringIntern struct {
	pool map[string]string
}

// maxInternPoolSize caps the pool so a pathological dump with millions
// of unique tokens cannot grow it without bound.
const maxInternPoolSize = 100000

// NewStringIntern creates a new string interner.
func NewStringIntern() *StringIntern {
	return &StringIntern{
		pool: make(map[string]string, 256),
	}
}

// Intern returns the canonical version of the string.
func (si *StringIntern) Intern(s string) string {
	if pooled, ok := si.pool[s]; ok {
		return pooled
	}
	if len(si.pool) >= maxInternPoolSize {
		return s
	}
	si.pool[s] = s
	return s
}

// Len returns the number of unique strings in the pool.
func (si *StringIntern) Len() int {
	return len(si.pool)
}
