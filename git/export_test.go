package git

// Exported aliases for testing internal functions from
// the git_test package.

// OverlayForTest exposes overlay.
var OverlayForTest = overlay
