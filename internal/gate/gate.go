package gate

import (
	"strings"

	"jobpilot/internal/config"
	"jobpilot/internal/domain"
)

// Result is the gate's verdict on one posting. A hard reject removes the
// posting; a soft mismatch only carries a penalty into scoring.
type Result struct {
	Pass    bool
	Penalty int // 0..30, subtracted from the final score
	Reason  string
}

// Gate applies the rule-based career filter ahead of AI scoring.
type Gate struct {
	cfg config.Config
}

func New(cfg config.Config) *Gate {
	return &Gate{cfg: cfg}
}

const maxPenalty = 30

// Check runs the allow/deny lists, salary floor and exclusions against p.
func (g *Gate) Check(p domain.JobPosting) Result {
	title := strings.ToLower(p.Title)
	text := strings.ToLower(p.Title + " " + p.Description)
	company := strings.ToLower(p.Company)

	for _, deny := range g.cfg.Gate.DenyTitle {
		if deny = normNeedle(deny); deny != "" && strings.Contains(title, deny) {
			return Result{Pass: false, Reason: "deny_title:" + deny}
		}
	}

	for _, deny := range g.cfg.Gate.DenyCompany {
		if deny = normNeedle(deny); deny != "" && strings.Contains(company, deny) {
			return Result{Pass: false, Reason: "deny_company:" + deny}
		}
	}

	for _, stage := range g.cfg.Gate.DenyStage {
		if stage = normNeedle(stage); stage != "" && strings.Contains(text, stage) {
			return Result{Pass: false, Reason: "deny_stage:" + stage}
		}
	}

	if p.WorkMode == "Onsite" {
		loc := strings.ToLower(p.Location)
		for _, block := range g.cfg.Gate.OnsiteBlock {
			if block = normNeedle(block); block != "" && strings.Contains(loc, block) {
				return Result{Pass: false, Reason: "onsite_block:" + block}
			}
		}
	}

	if floor := g.salaryFloor(p); floor > 0 && p.SalaryMax > 0 && p.SalaryMax < floor {
		return Result{Pass: false, Reason: "below_salary_floor"}
	}

	if len(g.cfg.Gate.AllowTitle) > 0 && !anyContains(title, g.cfg.Gate.AllowTitle) {
		return Result{Pass: false, Reason: "no_allow_title_match"}
	}

	// Soft domain mismatch: keyword overlap can look like a fit while the
	// role category is clearly off. Penalize instead of rejecting so edge
	// cases still reach scoring.
	for _, soft := range g.cfg.Gate.SoftMismatch {
		if soft = normNeedle(soft); soft != "" && strings.Contains(text, soft) {
			penalty := g.cfg.Gate.MismatchPenalty
			if penalty < 0 {
				penalty = 0
			}
			if penalty > maxPenalty {
				penalty = maxPenalty
			}
			return Result{Pass: true, Penalty: penalty, Reason: "soft_mismatch:" + soft}
		}
	}

	return Result{Pass: true}
}

// salaryFloor picks the floor for the posting's location class. Classes are
// matched as substrings of the location; "default" applies otherwise.
func (g *Gate) salaryFloor(p domain.JobPosting) int {
	loc := strings.ToLower(p.Location)
	if p.WorkMode == "Remote" {
		if f, ok := g.cfg.Gate.SalaryFloors["remote"]; ok {
			return f
		}
	}
	for class, floor := range g.cfg.Gate.SalaryFloors {
		if class == "default" || class == "remote" {
			continue
		}
		if strings.Contains(loc, strings.ToLower(class)) {
			return floor
		}
	}
	return g.cfg.Gate.SalaryFloors["default"]
}

func normNeedle(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func anyContains(text string, needles []string) bool {
	for _, n := range needles {
		if n = normNeedle(n); n != "" && strings.Contains(text, n) {
			return true
		}
	}
	return false
}
