package level

// GlobalCatalog is the partition every snapshot row lives under.
const GlobalCatalog = "global"

// SyncRequest asks the refresher process for a new tree snapshot.
//
// ID is the wall-clock time in nanoseconds at creation, which also orders
// requests. Filename is set once the request is fulfilled.
type SyncRequest struct {
	Catalog  string `json:"catalog"`
	ID       int64  `json:"id"`
	Comment  string `json:"comment"`
	Filename string `json:"filename"`
}

// Fulfilled tests whether a snapshot has been produced for this request.
func (r SyncRequest) Fulfilled() bool {
	return r.Filename != ""
}
