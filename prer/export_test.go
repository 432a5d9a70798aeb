package prer

// Exported aliases for testing internal functions from
// the prer_test package.

// FirstNonBlankForTest exposes firstNonBlank.
var FirstNonBlankForTest = firstNonBlank
