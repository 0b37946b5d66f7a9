package schemas

// Kind names one known agent output schema.
type Kind string

const (
	KindSearchPlan   Kind = "search_plan"
	KindBrief        Kind = "brief"
	KindResearchPack Kind = "research_pack"
	KindStructure    Kind = "structure"
	KindDraft        Kind = "draft"
	KindReview       Kind = "review"
)

// Output is the typed result of a structured agent call. The set of
// implementations is closed: one variant per Kind.
type Output interface {
	Kind() Kind
	isOutput()
}

// SearchSummary is the planner's reading of the research request.
type SearchSummary struct {
	InterpretedTopic string   `json:"interpreted_topic"`
	KeyDimensions    []string `json:"key_dimensions"`
}

// SearchPlan lists the queries the research pipeline fans out per source kind.
type SearchPlan struct {
	SearchSummary      SearchSummary `json:"search_summary"`
	AcademicQueries    []string      `json:"academic_queries"`
	NewsQueries        []string      `json:"news_queries"`
	WebQueries         []string      `json:"web_queries"`
	UserLibraryQueries []string      `json:"user_library_queries"`
}

// RequirementMeta describes the document the user wants written.
type RequirementMeta struct {
	DocumentType   string  `json:"document_type"`
	TargetAudience string  `json:"target_audience"`
	WritingDepth   string  `json:"writing_depth"`
	CitationStyle  string  `json:"citation_style"`
	Language       string  `json:"language"`
	MaxWordCount   float64 `json:"max_word_count"`
	SEOMode        bool    `json:"seo_mode"`
	Tone           string  `json:"tone"`
}

// WritingBrief is the requirements layer confirmed with the user.
type WritingBrief struct {
	Topic             string          `json:"topic"`
	UserCoreThesis    string          `json:"user_core_thesis"`
	ConfirmedInsights []string        `json:"confirmed_insights"`
	RequirementMeta   RequirementMeta `json:"requirement_meta"`
	Style             string          `json:"style,omitempty"`
	Keywords          []string        `json:"keywords,omitempty"`
	BackgroundContext string          `json:"background_context,omitempty"`
}

type ResearchSource struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Content          string   `json:"content"`
	Summary          string   `json:"summary,omitempty"`
	SourceURL        string   `json:"source_url,omitempty"`
	SourceType       string   `json:"source_type,omitempty"`
	CredibilityScore float64  `json:"credibility_score"`
	RecencyScore     float64  `json:"recency_score"`
	RelevanceScore   float64  `json:"relevance_score"`
	TokenLength      float64  `json:"token_length"`
	Tags             []string `json:"tags,omitempty"`
	CreatedAt        string   `json:"created_at,omitempty"`
}

type Insight struct {
	ID                  string   `json:"id"`
	Category            string   `json:"category"`
	Content             string   `json:"content"`
	SupportingSourceIDs []string `json:"supporting_source_ids"`
	Citability          string   `json:"citability"`
	EvidenceStrength    string   `json:"evidence_strength"`
	RiskFlag            bool     `json:"risk_flag"`
	ConfidenceScore     float64  `json:"confidence_score"`
	UserDecision        string   `json:"user_decision,omitempty"`
}

type ResearchSummary struct {
	TotalSources  float64 `json:"total_sources"`
	TotalInsights float64 `json:"total_insights"`
	CoverageScore float64 `json:"coverage_score"`
	QualityScore  float64 `json:"quality_score"`
}

// ResearchPack is the organised research handed to the outline agent.
type ResearchPack struct {
	Sources  []ResearchSource `json:"sources"`
	Insights []Insight        `json:"insights"`
	Summary  ResearchSummary  `json:"summary"`
}

type ArgumentBlock struct {
	BlockID            string   `json:"block_id"`
	Title              string   `json:"title"`
	MainArgument       string   `json:"main_argument"`
	DerivedFrom        []string `json:"derived_from"`
	CitationIDs        []string `json:"citation_ids"`
	SupportingPoints   []string `json:"supporting_points,omitempty"`
	EstimatedWordCount float64  `json:"estimated_word_count,omitempty"`
	Order              float64  `json:"order,omitempty"`
}

type CoverageCheck struct {
	CoveredInsights    []string `json:"covered_insights"`
	UnusedInsights     []string `json:"unused_insights,omitempty"`
	CoveragePercentage float64  `json:"coverage_percentage,omitempty"`
}

// ArgumentOutline is the article structure. Every block derives from at
// least one insight.
type ArgumentOutline struct {
	CoreThesis                string             `json:"core_thesis"`
	ArgumentBlocks            []ArgumentBlock    `json:"argument_blocks"`
	CoverageCheck             CoverageCheck      `json:"coverage_check"`
	LogicalPattern            string             `json:"logical_pattern"`
	EstimatedWordDistribution map[string]float64 `json:"estimated_word_distribution"`
	TotalEstimatedWords       float64            `json:"total_estimated_words,omitempty"`
}

type Citation struct {
	SourceID        string `json:"source_id"`
	SourceURL       string `json:"source_url,omitempty"`
	SourceTitle     string `json:"source_title,omitempty"`
	Quote           string `json:"quote,omitempty"`
	CitationType    string `json:"citation_type"`
	CitationDisplay string `json:"citation_display"`
}

type DraftBlock struct {
	BlockID           string     `json:"block_id"`
	ParagraphID       string     `json:"paragraph_id"`
	Content           string     `json:"content"`
	DerivedFrom       []string   `json:"derived_from"`
	Citations         []Citation `json:"citations"`
	CoherenceScore    float64    `json:"coherence_score"`
	RequiresUserInput bool       `json:"requires_user_input"`
	Order             float64    `json:"order,omitempty"`
}

// DraftPayload is a generated draft split into traceable blocks.
type DraftPayload struct {
	DraftBlocks           []DraftBlock `json:"draft_blocks"`
	GlobalCoherenceScore  float64      `json:"global_coherence_score"`
	MissingEvidenceBlocks []string     `json:"missing_evidence_blocks"`
	NeedsRevision         bool         `json:"needs_revision"`
	RevisionNotes         []string     `json:"revision_notes,omitempty"`
	TotalWordCount        float64      `json:"total_word_count"`
	CreatedAt             string       `json:"created_at,omitempty"`
}

type IssueLocation struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type Issue struct {
	BlockID     string         `json:"block_id,omitempty"`
	ParagraphID string         `json:"paragraph_id,omitempty"`
	IssueType   string         `json:"issue_type"`
	Severity    string         `json:"severity"`
	Description string         `json:"description"`
	Suggestion  string         `json:"suggestion,omitempty"`
	Location    *IssueLocation `json:"location,omitempty"`
}

type SuggestedRewrite struct {
	BlockID       string `json:"block_id"`
	OriginalText  string `json:"original_text"`
	SuggestedText string `json:"suggested_text"`
	Reason        string `json:"reason"`
}

type QualityScores struct {
	LogicScore    float64 `json:"logic_score"`
	CitationScore float64 `json:"citation_score"`
	StyleScore    float64 `json:"style_score"`
	GrammarScore  float64 `json:"grammar_score"`
	OverallScore  float64 `json:"overall_score"`
}

// ReviewPayload is the proofreading verdict on a draft.
type ReviewPayload struct {
	LogicIssues       []Issue            `json:"logic_issues"`
	CitationIssues    []Issue            `json:"citation_issues"`
	StyleIssues       []Issue            `json:"style_issues"`
	GrammarIssues     []Issue            `json:"grammar_issues"`
	RedundancyScore   float64            `json:"redundancy_score"`
	SuggestedRewrites []SuggestedRewrite `json:"suggested_rewrites"`
	OverallQuality    QualityScores      `json:"overall_quality"`
	Pass              bool               `json:"pass"`
	ReviewNotes       string             `json:"review_notes,omitempty"`
	CreatedAt         string             `json:"created_at,omitempty"`
}

func (SearchPlan) Kind() Kind      { return KindSearchPlan }
func (WritingBrief) Kind() Kind    { return KindBrief }
func (ResearchPack) Kind() Kind    { return KindResearchPack }
func (ArgumentOutline) Kind() Kind { return KindStructure }
func (DraftPayload) Kind() Kind    { return KindDraft }
func (ReviewPayload) Kind() Kind   { return KindReview }

func (SearchPlan) isOutput()      {}
func (WritingBrief) isOutput()    {}
func (ResearchPack) isOutput()    {}
func (ArgumentOutline) isOutput() {}
func (DraftPayload) isOutput()    {}
func (ReviewPayload) isOutput()   {}

// AllIssues returns every issue of the review in category order.
func (r ReviewPayload) AllIssues() []Issue {
	out := make([]Issue, 0, len(r.LogicIssues)+len(r.CitationIssues)+len(r.StyleIssues)+len(r.GrammarIssues))
	out = append(out, r.LogicIssues...)
	out = append(out, r.CitationIssues...)
	out = append(out, r.StyleIssues...)
	return append(out, r.GrammarIssues...)
}
