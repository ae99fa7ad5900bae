package proposal

import (
	"github.com/futig/proposal-backend/internal/entity"
)

// Template is everything the prompt needs to know about one format.
type Template struct {
	Format   entity.ProposalFormat
	Intro    string
	Sections []entity.Section
	MinWords int
	Style    string
	// Emphasis terms drive the relevance filter.
	Emphasis []string
}

var templates = map[entity.ProposalFormat]Template{
	entity.ProposalFormatBrief: {
		Format: entity.ProposalFormatBrief,
		Intro:  "Generate a comprehensive proposal from the answers below.",
		Sections: []entity.Section{
			{Title: "Executive Summary", Concern: entity.ConcernSummary, MinWords: 150,
				Guidance: "Provide a compelling overview of the proposal's key points"},
			{Title: "Project Scope", Concern: entity.ConcernScope, MinWords: 200,
				Guidance: "Detail specific deliverables, services and features"},
			{Title: "Budget", Concern: entity.ConcernBudget, MinWords: 100,
				Guidance: "Break down costs by category with justification"},
			{Title: "Timeline", Concern: entity.ConcernTimeline, MinWords: 150,
				Guidance: "Include detailed milestones with dates"},
			{Title: "Expected Outcomes", Concern: entity.ConcernOutcomes, MinWords: 150,
				Guidance: "Describe measurable results"},
		},
		MinWords: 800,
		Style:    "Use professional language throughout and provide specific, actionable details rather than vague statements.",
		Emphasis: []string{"scope", "deliverable", "feature", "budget", "cost", "timeline", "deadline", "outcome", "result"},
	},
	entity.ProposalFormatDetailed: {
		Format: entity.ProposalFormatDetailed,
		Intro:  "Generate a comprehensive proposal from the answers below. Each section must be thorough and well-developed.",
		Sections: []entity.Section{
			{Title: "Executive Summary", Concern: entity.ConcernSummary, MinWords: 200,
				Guidance: "Compelling overview that captures key selling points"},
			{Title: "Project Background & Goals", Concern: entity.ConcernBackground, MinWords: 250,
				Guidance: "Thorough analysis of the situation and objectives"},
			{Title: "Scope of Work", Concern: entity.ConcernScope, MinWords: 300,
				Guidance: "Comprehensive breakdown of all deliverables with specifics"},
			{Title: "Detailed Budget", Concern: entity.ConcernBudget, MinWords: 200,
				Guidance: "Line-item breakdown with justification for each cost"},
			{Title: "Timeline with Milestones", Concern: entity.ConcernTimeline, MinWords: 200,
				Guidance: "Detailed schedule with specific dates and dependencies"},
			{Title: "Team & Resources", Concern: entity.ConcernTeam, MinWords: 150,
				Guidance: "Key personnel, expertise and resources committed"},
			{Title: "Risks & Mitigations", Concern: entity.ConcernRisk, MinWords: 150,
				Guidance: "Potential challenges and planned solutions"},
			{Title: "Evaluation Criteria", Concern: entity.ConcernOutcomes, MinWords: 150,
				Guidance: "How success will be measured"},
		},
		MinWords: 1600,
		Style:    "Include specific details, examples and quantifiable metrics where possible. Use a formal business writing style.",
		Emphasis: []string{"goal", "objective", "scope", "deliverable", "budget", "cost", "timeline", "milestone",
			"team", "stakeholder", "risk", "success", "criteria", "metric"},
	},
	entity.ProposalFormatExecutive: {
		Format: entity.ProposalFormatExecutive,
		Intro:  "Generate an executive summary proposal from the answers below. Focus on strategic value, ROI and key business benefits.",
		Sections: []entity.Section{
			{Title: "Executive Overview", Concern: entity.ConcernSummary, MinWords: 200,
				Guidance: "High-impact summary tailored for C-level executives"},
			{Title: "Strategic Background", Concern: entity.ConcernBackground, MinWords: 150,
				Guidance: "Brief but substantive context and rationale"},
			{Title: "Solution Overview", Concern: entity.ConcernScope, MinWords: 200,
				Guidance: "Clear explanation of the proposed solution"},
			{Title: "Business Impact Analysis", Concern: entity.ConcernOutcomes, MinWords: 200,
				Guidance: "Detailed ROI and strategic advantages"},
			{Title: "Financial Summary", Concern: entity.ConcernBudget, MinWords: 150,
				Guidance: "Clear cost-benefit analysis with key metrics"},
			{Title: "Timeline Overview", Concern: entity.ConcernTimeline, MinWords: 150,
				Guidance: "Critical path and key milestones"},
			{Title: "Recommendation & Next Steps", Concern: entity.ConcernTerms, MinWords: 150,
				Guidance: "Clear action items"},
		},
		MinWords: 1200,
		Style:    "Use executive-appropriate language focusing on business value rather than technical details. Include specific metrics, KPIs and financial projections wherever possible.",
		Emphasis: []string{"goal", "strategic", "value", "roi", "impact", "benefit", "business", "budget", "cost",
			"revenue", "success", "timeline"},
	},
	entity.ProposalFormatFormal: {
		Format: entity.ProposalFormatFormal,
		Intro:  "Generate a formal RFP-style proposal from the answers below, structured according to standard formal proposal format.",
		Sections: []entity.Section{
			{Title: "Cover Page", Concern: entity.ConcernCover,
				Guidance: "Include title, date and company information"},
			{Title: "Executive Summary", Concern: entity.ConcernSummary, MinWords: 250,
				Guidance: "Comprehensive yet concise overview"},
			{Title: "Company Background", Concern: entity.ConcernTeam, MinWords: 200,
				Guidance: "Relevant organizational history and qualifications"},
			{Title: "Understanding of Requirements", Concern: entity.ConcernBackground, MinWords: 250,
				Guidance: "Demonstrate clear grasp of client needs"},
			{Title: "Proposed Solution", Concern: entity.ConcernScope, MinWords: 300,
				Guidance: "Detailed description of recommended approach"},
			{Title: "Implementation Approach", Concern: entity.ConcernRisk, MinWords: 250,
				Guidance: "Step-by-step methodology"},
			{Title: "Timeline", Concern: entity.ConcernTimeline, MinWords: 200,
				Guidance: "Detailed timeline with specific dates and deliverables"},
			{Title: "Budget & Pricing", Concern: entity.ConcernBudget, MinWords: 200,
				Guidance: "Comprehensive breakdown with justifications"},
			{Title: "Terms & Conditions", Concern: entity.ConcernTerms, MinWords: 150,
				Guidance: "Clear legal and business terms"},
			{Title: "Appendices", Concern: entity.ConcernAppendix,
				Guidance: "Supporting documentation and details, as needed"},
		},
		MinWords: 2000,
		Style:    "Use formal business language with appropriate headings, subheadings and a professional tone. Include specific details, metrics and quantifiable outcomes.",
		Emphasis: []string{"requirement", "scope", "solution", "deliverable", "implementation", "timeline", "deadline",
			"budget", "pricing", "cost", "stakeholder", "terms"},
	},
}

// TemplateFor returns the template of a known format.
func TemplateFor(format entity.ProposalFormat) (Template, bool) {
	t, ok := templates[format]
	return t, ok
}

// FormatInfo is the advertised description of one format.
type FormatInfo struct {
	Format   entity.ProposalFormat `json:"format"`
	Sections []string              `json:"sections"`
	MinWords int                   `json:"min_words"`
}

// Formats lists every format with its section titles.
func Formats() []FormatInfo {
	out := make([]FormatInfo, 0, len(entity.ProposalFormats))
	for _, f := range entity.ProposalFormats {
		t := templates[f]
		titles := make([]string, 0, len(t.Sections))
		for _, s := range t.Sections {
			titles = append(titles, s.Title)
		}
		out = append(out, FormatInfo{Format: f, Sections: titles, MinWords: t.MinWords})
	}
	return out
}

// concernFallback says where an answer goes when the format has no section
// for its own concern.
var concernFallback = map[entity.SectionConcern]entity.SectionConcern{
	entity.ConcernCover:      entity.ConcernSummary,
	entity.ConcernBackground: entity.ConcernSummary,
	entity.ConcernTeam:       entity.ConcernScope,
	entity.ConcernRisk:       entity.ConcernScope,
	entity.ConcernOutcomes:   entity.ConcernSummary,
	entity.ConcernTerms:      entity.ConcernSummary,
	entity.ConcernAppendix:   entity.ConcernSummary,
}

// SectionFor returns the title of the section an answer of the given concern
// feeds. Every format has a summary section, so the walk always ends.
func (t Template) SectionFor(concern entity.SectionConcern) string {
	for c := concern; ; {
		for _, s := range t.Sections {
			if s.Concern == c {
				return s.Title
			}
		}
		next, ok := concernFallback[c]
		if !ok || next == c {
			break
		}
		c = next
	}
	for _, s := range t.Sections {
		if s.Concern == entity.ConcernSummary {
			return s.Title
		}
	}
	return t.Sections[0].Title
}
