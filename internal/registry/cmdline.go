package registry

// parseLaunchArgs extracts title and command from a terminal emulator's
// command line, following the same flag grammar used at launch time: the
// long flag and its short alias each consume the single following token.
// Unknown tokens are skipped. Missing values leave the field empty.
func parseLaunchArgs(argv []string) (title, command string) {
	for i := 0; i < len(argv); i++ {
		switch argv[i] {
		case "--title", "-t":
			if i+1 < len(argv) {
				title = argv[i+1]
				i++
			}
		case "--command", "-e":
			if i+1 < len(argv) {
				command = argv[i+1]
				i++
			}
		}
	}
	return title, command
}
