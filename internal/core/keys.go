package core

// gamepadKeys maps viewer key names to the codes the emulator expects.
var gamepadKeys = map[string]int{
	"right":  0,
	"left":   1,
	"up":     2,
	"down":   3,
	"a":      4,
	"b":      5,
	"select": 6,
	"start":  7,
}

// KeyCode resolves a key name to its emulator code. Unknown keys are a
// no-op by contract, so callers drop them silently.
func KeyCode(name string) (int, bool) {
	code, ok := gamepadKeys[name]
	return code, ok
}
