// Package config loads the bbpr configuration file: Bitbucket Server
// integrations and the scaffolder defaults used when a caller omits the
// commit author, commit message or target branch.
//
// References of the form ${NAME} are replaced from the environment before
// the YAML is decoded, so secrets can stay out of the file. Load reads and
// validates a file; Parse does the same for raw bytes.
package config
