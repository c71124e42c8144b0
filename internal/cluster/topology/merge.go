package topology

// Merge reconciles the local snapshot with one received from a peer. An
// uninitialized side always loses. Otherwise the higher version wins, and
// equal versions must carry identical content; if they do not, local is kept
// and a *VersionConflictError is returned.
func Merge(local, remote Topology) (Topology, error) {
	switch {
	case !remote.IsInitialized():
		return local, nil
	case !local.IsInitialized():
		return remote, nil
	case remote.version > local.version:
		return remote, nil
	case remote.version < local.version:
		return local, nil
	case local.Equal(remote):
		return local, nil
	default:
		return local, &VersionConflictError{Version: local.version}
	}
}
