package detect

// PolarityPair is two terms that cannot both hold of the same subject.
type PolarityPair struct {
	Positive string
	Negative string
}

var DefaultPolarityPairs = []PolarityPair{
	{"always", "never"},
	{"all", "none"},
	{"can", "cannot"},
	{"true", "false"},
	{"possible", "impossible"},
	{"must", "must not"},
}

// DefaultScopeMarkers qualify the context a statement applies to.
var DefaultScopeMarkers = []string{
	"in general",
	"generally",
	"specifically",
	"in particular",
	"usually",
	"typically",
	"sometimes",
	"in some cases",
	"in most cases",
	"in theory",
	"in practice",
	"historically",
	"currently",
}

var DefaultGapPhrases = []string{
	"unclear",
	"uncertain",
	"unknown",
	"insufficient data",
	"requires further research",
	"not well understood",
	"conflicting evidence",
	"preliminary findings",
}

var DefaultConnectives = []string{
	"because",
	"therefore",
	"thus",
	"hence",
	"consequently",
	"leads to",
	"results in",
	"causes",
	"due to",
}

// Words whose sole presence turns a sentence into its own denial.
var negators = map[string]bool{"not": true, "no": true, "non": true}

var negationPrefixes = []string{"un", "non", "dis"}
