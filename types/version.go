package types

// Version is the canonical shipyard version.
// The CLI, the run report schema and the notification payload all share it.
const Version = "0.4.2"

// ReportSchemaVersion is stamped into every run report and notification
// so consumers can detect shape changes. It moves in lockstep with Version.
const ReportSchemaVersion = Version
