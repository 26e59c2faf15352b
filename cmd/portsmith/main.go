package main

import (
	"fmt"
	"os"

	"github.com/localnerve/portsmith/internal/cmd"
)

var version = "1.0.0"

// @title portsmith API
// @version 1.0.0
// @description Port reservation registry for fleets of cooperating processes

// @contact.name API Support
// @contact.url https://github.com/localnerve/portsmith
// @contact.email info@localnerve.com

// @license.name AGPL-3.0
// @license.url https://www.gnu.org/licenses/agpl-3.0.html

// @host localhost:55000
// @BasePath /
// @schemes http https

func main() {
	if err := cmd.NewRootCmd(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
