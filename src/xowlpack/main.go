// xowlpack packages xOWL addons, marketplaces, platforms and products.
package main

import (
	"github.com/cenotelie/xowl-toolkit/src/xowlpack/internal/cmd"
)

func main() {
	cmd.Execute()
}
