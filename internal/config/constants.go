package config

const (
	// DefaultDatabasePath is the default path for the data service database
	DefaultDatabasePath = "./libris.db"

	// DefaultSessionFile is where CLI clients keep their session token between runs
	DefaultSessionFile = "./.libris-session.json"
)
