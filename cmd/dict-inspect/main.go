// Command dict-inspect prints the contents of dictionary and sort-index
// files.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"path/filepath"

	"github.com/micadb/mica/pkg/columndict/filestore"
)

var printValues = flag.Bool("values", false, "print dictionary values with their surrogate keys")

func main() {
	flag.Parse()

	for _, f := range flag.Args() {
		switch filepath.Ext(f) {
		case ".dict":
			printDictionary(f)
		case ".sortindex":
			printSortIndex(f)
		default:
			log.Printf("%s: unknown file type", f)
		}
	}
}

func printDictionary(filename string) {
	r, err := filestore.OpenDictionary(filename)
	if err != nil {
		log.Printf("%s: %v", filename, err)
		return
	}
	defer func() { _ = r.Close() }()

	size, err := r.Size()
	if err != nil {
		log.Printf("%s: %v", filename, err)
		return
	}

	it, err := r.Read(0, size)
	if err != nil {
		log.Printf("%s: %v", filename, err)
		return
	}

	var (
		count int
		bytes int
	)
	for {
		v, err := it.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Printf("%s: record %d: %v", filename, count, err)
			return
		}
		if *printValues {
			fmt.Printf("%6d  %q\n", count, v)
		}
		count++
		bytes += len(v)
	}
	fmt.Printf("%s: %d values, %d bytes uncompressed, %d bytes on disk\n", filename, count, bytes, size)
}

func printSortIndex(filename string) {
	r, err := filestore.OpenSortIndex(filename)
	if err != nil {
		log.Printf("%s: %v", filename, err)
		return
	}
	defer func() { _ = r.Close() }()

	order, err := r.ReadSortIndex()
	if err != nil {
		log.Printf("%s: %v", filename, err)
		return
	}
	inverted, err := r.ReadInvertedSortIndex()
	if err != nil {
		log.Printf("%s: %v", filename, err)
		return
	}

	fmt.Printf("%s: %d entries, digest ok\n", filename, len(order))
	if *printValues {
		for i := range order {
			fmt.Printf("%6d  rank=%-6d inverse=%d\n", i, order[i], inverted[i])
		}
	}
}
