package artifact

import (
	"fmt"
	"strings"
	"time"

	"github.com/kokistudios/vulnlife/internal/stage"
)

type skeleton struct {
	bullets     []string
	subsections []string
}

// Bullet labels follow the scheme recognized by the metadata classifier:
// labels containing 时间 feed the timeline, 版本/链接 pick their icons.
var skeletons = map[int]skeleton{
	stage.Introduction: {
		bullets:     []string{"引入时间：YYYY-MM-DD", "引入版本：待填写", "引入提交：待填写"},
		subsections: []string{"引入原因", "影响范围"},
	},
	stage.Discovery: {
		bullets:     []string{"发现时间：YYYY-MM-DD", "发现者：研究员", "发现方式：待填写"},
		subsections: []string{"发现过程"},
	},
	stage.Report: {
		bullets:     []string{"上报时间：YYYY-MM-DD", "上报渠道：待填写"},
		subsections: []string{"沟通记录"},
	},
	stage.Patch: {
		bullets:     []string{"修复时间：YYYY-MM-DD", "修复版本：待填写", "补丁链接：https://example.com/commit/abc123"},
		subsections: []string{"修复方案", "补丁分析"},
	},
	stage.Disclosure: {
		bullets:     []string{"公开时间：YYYY-MM-DD", "公告链接：https://example.com/advisory"},
		subsections: []string{"公开渠道"},
	},
	stage.Intelligence: {
		bullets:     []string{"情报时间：YYYY-MM-DD"},
		subsections: []string{"在野利用", "相关组织"},
	},
	stage.Exploitation: {
		bullets:     []string{"利用时间：YYYY-MM-DD", "PoC 链接：待填写"},
		subsections: []string{"利用条件", "利用步骤"},
	},
	stage.Mitigation: {
		bullets:     []string{"检测规则时间：YYYY-MM-DD"},
		subsections: []string{"临时缓解", "检测规则"},
	},
}

var basicInfoRows = []string{"漏洞编号", "漏洞类型", "影响组件", "影响版本", "危害等级"}

// Template returns a skeleton report covering all nine lifecycle stages.
// Every unfilled spot carries a TODO marker so the completion score starts
// low and rises as the author works through it.
func Template(title string) *Report {
	if strings.TrimSpace(title) == "" {
		title = stage.DefaultTitle
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", title)

	for _, c := range stage.Canonical() {
		fmt.Fprintf(&b, "\n## %d. %s\n\n", c.Num, c.Name)
		if c.Num == stage.BasicInfo {
			b.WriteString("| 字段 | 内容 |\n| --- | --- |\n")
			for _, row := range basicInfoRows {
				fmt.Fprintf(&b, "| %s | TODO: 待填写 |\n", row)
			}
			continue
		}
		sk := skeletons[c.Num]
		for _, bullet := range sk.bullets {
			fmt.Fprintf(&b, "- **%s\n", strings.Replace(bullet, "：", "**：", 1))
		}
		for _, sub := range sk.subsections {
			fmt.Fprintf(&b, "\n### %s\n\nTODO: 待补充\n", sub)
		}
	}

	return &Report{
		Meta: ReportMeta{Title: title, Updated: time.Now().UTC().Truncate(time.Second)},
		Body: b.String(),
	}
}
