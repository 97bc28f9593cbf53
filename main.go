// Command harvester collects stock forum feeds through a scored proxy
// pool.
package main

import "github.com/fincrawl/guba-harvester/cmd"

func main() {
	cmd.Execute()
}
