package main

import "github.com/frahmantamala/smm-storefront/cmd"

func main() {
	cmd.Execute()
}
