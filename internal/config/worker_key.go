package config

type WorkerKeyStruct struct {
	PersistDraftsQueue   string
	SubmissionStatsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistDraftsQueue:   "persist_drafts_queue",
	SubmissionStatsQueue: "submission_stats_queue",
}
