// Command weft drives the weft build-plan execution engine.
package main

import "github.com/weftbuild/weft/internal/weft"

func main() {
	weft.Main()
}
