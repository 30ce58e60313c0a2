package repository

// CacheRepository stores session snapshots (conversation history, balance)
// keyed by session id. Writes are best-effort; losing a snapshot never
// affects committed session state.
type CacheRepository interface {
	Get(key string) (string, bool)
	Set(key string, value string) error
}
