package config

// this holds the resolved configuration values from CLI
//
//nolint:lll // readablity
var (
	DB                 string // connection string for the database
	NatsURL            string // URL of the NATS server
	NatsBucket         string // name of the JetStream KV bucket for best times
	WaitForServices    string // duration to wait for other services to be ready
	LogLevel           string // sets the log level (zap log level values)
	SQLLogLevel        string // sets the log level for sql subsystem
	LogFormat          string // text vs json
	LogFilter          string // zapfilter rules, e.g. "debug:race.* info:*"
	MigrationSourceURL string // location of migration files, embedded files if empty
	EnableTelemetry    bool   // enable telemetry
	TelemetryEndpoint  string // endpoint for telemetry
	ProfilingPort      int    // port for profiling
	HTTPServerAddr     string // listen addr for the status API
	MinClientVersion   string // commands from clients below this version are rejected
	MaxPathLength      int    // max number of boundary voxels of a gate
	MaxGatesPerTrack   int    // max number of gates of a track
	BestTimesLimit     int    // number of entries in the leaderboard
	LapTimeCeiling     int64  // laps above this duration (ms) are discarded
	PrintMessage       bool   // if true, the message payload will be print on debug level
)
