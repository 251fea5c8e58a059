package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/ecc1/cc1101"
)

var device = flag.String("d", "", "radio device path (default per platform)")

func main() {
	flag.Parse()
	r, err := cc1101.Open(*device)
	if err != nil {
		log.Fatal(err)
	}
	defer r.Close()
	part, err := r.Device().ReadRegister(cc1101.PARTNUM)
	if err != nil {
		log.Fatal(err)
	}
	ver, err := r.Device().ReadRegister(cc1101.VERSION)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("radio: %s on %s (PARTNUM %02X, VERSION %02X)\n", r.Name(), r.Path(), part, ver)
	fmt.Printf("state: %s\n", r.State())
	f, err := r.Frequency()
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("frequency: %d Hz\n", f)
}
