package stage

import "strings"

// Count is the number of canonical lifecycle stages.
const Count = 9

// Canonical stage numbers.
const (
	BasicInfo    = 1
	Introduction = 2
	Discovery    = 3
	Report       = 4
	Patch        = 5
	Disclosure   = 6
	Intelligence = 7
	Exploitation = 8
	Mitigation   = 9
)

// CanonicalStage describes one of the nine lifecycle phases.
type CanonicalStage struct {
	Num     int    `json:"num"`
	Name    string `json:"name"`
	English string `json:"english"`
}

var canonical = []CanonicalStage{
	{BasicInfo, "基本信息", "Basic Information"},
	{Introduction, "漏洞引入", "Introduction"},
	{Discovery, "漏洞发现", "Discovery"},
	{Report, "漏洞上报", "Report"},
	{Patch, "漏洞修复", "Patch"},
	{Disclosure, "漏洞公开", "Disclosure"},
	{Intelligence, "威胁情报", "Threat Intelligence"},
	{Exploitation, "漏洞利用", "Exploitation"},
	{Mitigation, "防护检测", "Mitigation & Detection"},
}

// Canonical returns the ordered list of lifecycle stages.
func Canonical() []CanonicalStage {
	out := make([]CanonicalStage, len(canonical))
	copy(out, canonical)
	return out
}

// Name returns the canonical name for stage n, or "" when n is out of range.
func Name(n int) string {
	if n < 1 || n > Count {
		return ""
	}
	return canonical[n-1].Name
}

type keyword struct {
	text string
	num  int
}

// keywords holds the canonical stage names. A title containing one of them
// resolves to that stage; anything else stays unrecognized.
var keywords = []keyword{
	{"基本信息", BasicInfo},
	{"漏洞引入", Introduction},
	{"漏洞发现", Discovery},
	{"漏洞上报", Report},
	{"漏洞修复", Patch},
	{"漏洞公开", Disclosure},
	{"威胁情报", Intelligence},
	{"漏洞利用", Exploitation},
	{"防护检测", Mitigation},
}

func keywordStage(title string) (int, bool) {
	lower := strings.ToLower(title)
	for _, k := range keywords {
		if strings.Contains(lower, k.text) {
			return k.num, true
		}
	}
	return 0, false
}
