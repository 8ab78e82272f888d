package storefront

// Source tells where a collection's current contents came from
type Source string

const (
	SourceUninitialized Source = "uninitialized"
	SourceLoading       Source = "loading"
	SourceGuest         Source = "guest"
	SourceServer        Source = "server"
	SourceMigrating     Source = "migrating"
)
