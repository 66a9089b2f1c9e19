package event

// Kind enumerates the lifecycle events an action can fire.
type Kind int

const (
	BeforeFilter Kind = iota
	Startup
	BeforeHandle
	BeforePaginate
	AfterPaginate
	BeforeLookup
	AfterLookup
	BeforeFind
	AfterFind
	RecordNotFound
	InvalidID
	BeforeSave
	AfterSave
	BeforeDelete
	AfterDelete
	SetFlash
	BeforeRender
	BeforeRedirect
	RelatedModel

	kindCount
)

// DefaultPrefix is prepended to event names when formatting with Name.
const DefaultPrefix = "Crud"

var kindNames = [kindCount]string{
	BeforeFilter:   "beforeFilter",
	Startup:        "startup",
	BeforeHandle:   "beforeHandle",
	BeforePaginate: "beforePaginate",
	AfterPaginate:  "afterPaginate",
	BeforeLookup:   "beforeLookup",
	AfterLookup:    "afterLookup",
	BeforeFind:     "beforeFind",
	AfterFind:      "afterFind",
	RecordNotFound: "recordNotFound",
	InvalidID:      "invalidId",
	BeforeSave:     "beforeSave",
	AfterSave:      "afterSave",
	BeforeDelete:   "beforeDelete",
	AfterDelete:    "afterDelete",
	SetFlash:       "setFlash",
	BeforeRender:   "beforeRender",
	BeforeRedirect: "beforeRedirect",
	RelatedModel:   "relatedModel",
}

// String returns the short event name, e.g. "beforeFind".
func (k Kind) String() string {
	if k < 0 || k >= kindCount {
		return "unknown"
	}
	return kindNames[k]
}

// Name returns the prefixed event name, e.g. "Crud.beforeFind".
func (k Kind) Name(prefix string) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return prefix + "." + k.String()
}

// Kinds returns every known kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, 0, kindCount)
	for k := Kind(0); k < kindCount; k++ {
		out = append(out, k)
	}
	return out
}

// ParseKind resolves a short ("beforeFind") or prefixed ("Crud.beforeFind")
// event name.
func ParseKind(name string) (Kind, bool) {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			name = name[i+1:]
			break
		}
	}
	for k, n := range kindNames {
		if n == name {
			return Kind(k), true
		}
	}
	return 0, false
}
