package database

// Record is the persistent state of one discovered reference, keyed by
// fingerprint. One record exists per fingerprint for the lifetime of the
// store; records are never deleted, failed ones stay as an audit trail.
type Record struct {
	Fingerprint     string
	Status          Status
	RetryCount      int
	ExternalID      *string
	URL             *string
	DisplayTitle    *string
	TranslatedTitle *string
	Content         *string
	ContentKind     string
	ArtifactPath    *string
	Analysis        *string
	FailureReason   *string
	CreatedAt       *string
	UpdatedAt       *string
}

// Delivery tracks one outgoing message so a failed send can be retried
// on a later run without touching record state. The part-1 row carries
// the report bodies; ArtifactPaths holds the newline-joined source files
// so a lost bundle can be rebuilt at retry time.
type Delivery struct {
	ID            int64
	PeriodID      string
	Part          int
	Parts         int
	BundlePath    *string
	ArtifactPaths *string
	ReportText    *string
	ReportHTML    *string
	Sent          bool
	LastError     *string
}

// RunReport holds per-run counters for observability.
type RunReport struct {
	ID          int64
	PeriodID    string
	GeneratedAt *string
	Discovered  int
	Acquired    int
	Analyzed    int
	Failed      int
}

// Stats contains aggregate record store statistics.
type Stats struct {
	TotalRecords    int
	Pending         int
	Downloaded      int
	AbstractOnly    int
	Analyzed        int
	DownloadFailed  int
	AnalysisFailed  int
	PendingDelivery int
}
