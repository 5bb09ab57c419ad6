package reconciler

// Decision is the seeding gate's verdict for one matched torrent.
type Decision int

const (
	// KeepSeeding leaves the torrent and its data alone; only the library
	// entry may be removed.
	KeepSeeding Decision = iota

	// DeleteTorrent removes the torrent and its data along with the
	// library entry.
	DeleteTorrent
)

func (d Decision) String() string {
	if d == DeleteTorrent {
		return "delete"
	}
	return "keep-seeding"
}

// Decide applies the seeding gate: a torrent that has met its instance's
// seed budget is deleted, anything still earning ratio is kept. The
// boundary is inclusive: seeding exactly seed_limit minutes deletes.
// A negative limit means the instance is unknown and nothing is deleted.
func Decide(seedingMinutes, seedLimitMinutes int64) Decision {
	if seedLimitMinutes < 0 {
		return KeepSeeding
	}
	if seedingMinutes >= seedLimitMinutes {
		return DeleteTorrent
	}
	return KeepSeeding
}
