package database

// SnapshotInfo describes one stored daily snapshot.
type SnapshotInfo struct {
	Date        string
	RecordCount int
	SavedAt     *string
}

// NewsItem represents a collected industry news article.
type NewsItem struct {
	ID             int64
	URL            string
	Title          string
	Source         string
	PublishedAt    *string
	Description    string
	Content        *string
	ContentFetched bool
	CollectedDate  string
	CollectedAt    *string
}

// Analysis holds the stored analysis and digest for one report.
type Analysis struct {
	Date           string
	Kind           string // "daily" or "weekly"
	AnalysisJSON   string
	DigestMarkdown string
	ChangeCount    int
	TopCount       int
	GeneratedAt    *string
}

// RunReport holds metadata about a pipeline run.
type RunReport struct {
	ID          string
	Date        string
	Kind        string
	RecordCount int
	ChangeCount int
	FailedSteps int
	GeneratedAt *string
}

// Stats contains aggregate database statistics.
type Stats struct {
	Snapshots      int
	ChartRecords   int
	NewsItems      int
	DailyAnalyses  int
	WeeklyAnalyses int
	Runs           int
}
