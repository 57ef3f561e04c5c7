package xds

// typeState is one resource type's subscription and acknowledgment
// bookkeeping for a single stream (spec.md §4.5). A stream's types are
// only ever touched by that stream's own goroutine, so no locking is
// needed here — streamState.forType just lazily allocates map entries.
type typeState struct {
	// subscription is the set of resource names this stream asked for.
	// nil means wildcard: every resource of this type.
	subscription map[string]bool

	// lastSentHash is the content hash of the resource set in the most
	// recent response sent for this type, used to suppress a push when
	// a version bump didn't actually change what this stream can see.
	lastSentHash string

	// lastVersionInfo is the version_info the stream last ACKed.
	lastVersionInfo string

	// pendingNonce is the nonce of a response awaiting ACK/NACK. Empty
	// when nothing is outstanding.
	pendingNonce string
}

// streamState holds every resource type's independent state for one
// ADS stream. Each type advances completely independently — an ACK or
// NACK on one type never blocks or reorders another (spec.md §4.5
// "strict per-type independent ordering").
type streamState struct {
	types map[string]*typeState
}

func newStreamState() *streamState {
	return &streamState{types: make(map[string]*typeState, len(orderedTypeURLs))}
}

func (s *streamState) forType(typeURL string) *typeState {
	t, ok := s.types[typeURL]
	if !ok {
		t = &typeState{}
		s.types[typeURL] = t
	}
	return t
}

// subscriptionSet turns a DiscoveryRequest's resource_names into the
// typeState subscription shape: nil for wildcard (empty list), a set
// otherwise.
func subscriptionSet(names []string) map[string]bool {
	if len(names) == 0 {
		return nil
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

// subscriptionEqual reports whether two subscription sets (either of
// which may be the nil/wildcard value) select the same resources.
func subscriptionEqual(a, b map[string]bool) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}
