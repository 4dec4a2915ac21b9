package store

// ApplicationStatus 是求职记录的人工维护状态。存储层不校验状态流转，
// 任意取值都可以通过 UpdateStatus 写入，流程约束属于上层界面。
type ApplicationStatus string

const (
	StatusSaved        ApplicationStatus = "saved"
	StatusApplied      ApplicationStatus = "applied"
	StatusInterviewing ApplicationStatus = "interviewing"
	StatusOffered      ApplicationStatus = "offered"
	StatusRejected     ApplicationStatus = "rejected"
)

// WorkType 描述职位的办公形式。
type WorkType string

const (
	WorkRemote  WorkType = "remote"
	WorkHybrid  WorkType = "hybrid"
	WorkOnsite  WorkType = "onsite"
	WorkUnknown WorkType = "unknown"
)

// DocumentType 区分简历与求职信版本。历史数据缺省该字段，缺省视为简历。
type DocumentType string

const (
	DocumentResume      DocumentType = "resume"
	DocumentCoverLetter DocumentType = "cover-letter"
)

// SectionType 是简历片段的分类。
type SectionType string

const (
	SectionEducation    SectionType = "education"
	SectionExperience   SectionType = "experience"
	SectionResearch     SectionType = "research"
	SectionSkills       SectionType = "skills"
	SectionAchievements SectionType = "achievements"
	SectionCustom       SectionType = "custom"
)

// JobApplication 是一条求职记录。ResumeVersionID/CoverLetterVersionID
// 是弱引用，指向的版本被删除后允许悬空。JSON 字段名与导出文件格式一致。
type JobApplication struct {
	ID                  string            `json:"id"`
	Title               string            `json:"title"`
	Company             string            `json:"company"`
	URL                 string            `json:"url"`
	Description         string            `json:"description"`
	Requirements        []string          `json:"requirements"`
	Salary              string            `json:"salary,omitempty"`
	Location            string            `json:"location"`
	WorkType            WorkType          `json:"workType"`
	DatePosted          string            `json:"datePosted,omitempty"`
	DateApplied         string            `json:"dateApplied,omitempty"`
	PositionID          string            `json:"positionId,omitempty"`
	Status              ApplicationStatus `json:"status"`
	Notes               string            `json:"notes"`
	MatchScore          *float64          `json:"matchScore,omitempty"`
	ResumeVersionID     string            `json:"resumeVersionId,omitempty"`
	CoverLetterVersionID string           `json:"coverLetterVersionId,omitempty"`
	CreatedAt           string            `json:"createdAt"`
	UpdatedAt           string            `json:"updatedAt"`
}

// CVVersion 是一份文档内容的不可变快照。内容身份由 Hash 决定，
// VersionNumber 只表达分区内的先后意图。
type CVVersion struct {
	ID                 string       `json:"id"`
	Title              string       `json:"title,omitempty"`
	Type               DocumentType `json:"type,omitempty"`
	VersionNumber      int          `json:"versionNumber"`
	Content            string       `json:"content"`
	Format             string       `json:"format,omitempty"`
	Created            string       `json:"created"`
	Updated            string       `json:"updated,omitempty"`
	Tags               []string     `json:"tags,omitempty"`
	Note               string       `json:"note,omitempty"`
	ParentID           string       `json:"parentId,omitempty"`
	Hash               string       `json:"hash,omitempty"`
	LinkedApplications []string     `json:"linkedApplications,omitempty"`
}

// ResumeSection 是可复用的简历片段，Content 与 LatexContent 由写入方
// 保持一致。isTemplate 的片段是只读种子，只能克隆不能直接编辑。
type ResumeSection struct {
	ID            string      `json:"id"`
	Type          SectionType `json:"type"`
	Title         string      `json:"title"`
	Content       string      `json:"content"`
	LatexContent  string      `json:"latexContent"`
	Tags          []string    `json:"tags"`
	Created       string      `json:"created"`
	Updated       string      `json:"updated"`
	VersionNumber int         `json:"versionNumber"`
	ParentID      string      `json:"parentId,omitempty"`
	IsTemplate    bool        `json:"isTemplate"`
}

// CVComposition 把若干片段按 SectionOrder 组合成一篇文档。
type CVComposition struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	SectionIDs    []string `json:"sectionIds"`
	SectionOrder  []int    `json:"sectionOrder"`
	Created       string   `json:"created"`
	Updated       string   `json:"updated"`
	VersionNumber int      `json:"versionNumber"`
}

// Config 是随求职数据一同持久化的少量设置。
type Config struct {
	OpenAIAPIKey string `json:"openaiApiKey,omitempty"`
}

// applicationData 是 job-assistant-data-<分区> 键下的整体布局。
type applicationData struct {
	Applications []JobApplication `json:"applications"`
	Config       Config           `json:"config"`
}
