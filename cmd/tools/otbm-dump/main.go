package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/annel0/map-editor/internal/logging"
	"github.com/annel0/map-editor/internal/otbm"
	"github.com/dustin/go-humanize"
)

func main() {
	var (
		in       = flag.String("in", "", "Файл .otbm")
		depth    = flag.Int("depth", 3, "Максимальная глубина вывода (0 без ограничения)")
		maxBytes = flag.Int("max", 32, "Сколько байт данных узла печатать (0 не печатать)")
		header   = flag.Bool("header", true, "Печатать заголовок карты")
	)
	flag.Parse()

	if *in == "" {
		log.Fatal("❌ Не задан -in")
	}
	data, err := os.ReadFile(*in)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	if *header {
		h, err := otbm.ReadHeader(data)
		if err != nil {
			log.Fatalf("❌ Заголовок: %v", err)
		}
		fmt.Printf("📄 %s (%s)\n", *in, humanize.Bytes(uint64(len(data))))
		fmt.Printf("   %s, предметы %d.%d, %dx%d\n",
			h.Version.OTBM, h.Version.ItemsMajor, h.Version.ItemsMinor, h.Width, h.Height)
		if h.Description != "" {
			fmt.Printf("   %s\n", h.Description)
		}
	}

	root, err := otbm.ParseTree(data)
	if err != nil {
		log.Fatalf("❌ Дерево: %v", err)
	}
	stats := map[otbm.NodeType]int{}
	dumpNode(os.Stdout, root, 0, *depth, *maxBytes, stats)

	fmt.Println("📊 Узлы:")
	for _, t := range []otbm.NodeType{otbm.NodeTileArea, otbm.NodeTile, otbm.NodeHouseTile, otbm.NodeItem, otbm.NodeTown} {
		if n := stats[t]; n > 0 {
			fmt.Printf("   %-10s %s\n", t, humanize.Comma(int64(n)))
		}
	}
}

// dumpNode печатает узел и потомков, считая узлы по типам на любой глубине
func dumpNode(w io.Writer, n *otbm.Node, level, depth, maxBytes int, stats map[otbm.NodeType]int) {
	stats[n.Type]++
	if depth == 0 || level < depth {
		indent := strings.Repeat("  ", level)
		fmt.Fprintf(w, "%s%s [0x%02X] @%d, %d байт, детей %d\n",
			indent, n.Type, byte(n.Type), n.Offset, len(n.Data), len(n.Children))
		if maxBytes > 0 && len(n.Data) > 0 {
			size := min(len(n.Data), maxBytes)
			for _, line := range strings.Split(strings.TrimRight(logging.HexDump(n.Data[:size]), "\n"), "\n") {
				fmt.Fprintf(w, "%s  %s\n", indent, line)
			}
		}
	}
	for _, c := range n.Children {
		dumpNode(w, c, level+1, depth, maxBytes, stats)
	}
}
