// Command mozolm-train builds a persisted PPM-as-FST or character
// n-gram FST model, replacing the teacher's cmd/compile (which only
// ever built an ARPA-backed fslm.Hashed) with the two model kinds
// spec.md §6's "Persisted formats" names as FST-shaped.
package main

import (
	"flag"
	"os"

	"github.com/golang/glog"

	"github.com/kho/mozolm/models"
	"github.com/kho/mozolm/wfst"
)

func main() {
	corpus := flag.String("corpus", "", "training corpus, one sample per line")
	arpa := flag.String("arpa", "", "ARPA n-gram file (alternative to -corpus, produces a char FST)")
	out := flag.String("out", "", "output model file (gob)")
	vocabOut := flag.String("vocab_out", "", "output vocabulary file, one symbol per line (optional)")
	maxOrder := flag.Int("max_order", models.DefaultPPMMaxOrder, "PPM max order")
	alpha := flag.Float64("alpha", models.DefaultPPMAlpha, "PPM alpha")
	beta := flag.Float64("beta", models.DefaultPPMBeta, "PPM beta")
	static := flag.Bool("static", true, "build a static (non-adaptive) PPM model")
	flag.Parse()

	if *out == "" {
		glog.Fatal("mozolm-train: -out is required")
	}

	var fst *wfst.Fst
	switch {
	case *corpus != "":
		lines, err := models.ReadCorpusLines(*corpus)
		if err != nil {
			glog.Fatal(err)
		}
		symbols := models.VocabFromCorpus(lines)
		ppm, err := models.NewPPMFromCorpus(lines, symbols, *maxOrder, *alpha, *beta, *static, models.DefaultPPMMaxCacheSize)
		if err != nil {
			glog.Fatal(err)
		}
		fst = ppm.Fst()
		if *vocabOut != "" {
			writeVocab(*vocabOut, symbols)
		}
	case *arpa != "":
		symbols := wfst.NewSymbolTable("<eps>")
		f, err := wfst.ReadARPAFile(*arpa, symbols)
		if err != nil {
			glog.Fatal(err)
		}
		fst = f
		if *vocabOut != "" {
			writeVocab(*vocabOut, symbols)
		}
	default:
		glog.Fatal("mozolm-train: one of -corpus or -arpa is required")
	}

	if err := wfst.WriteFstFile(*out, fst); err != nil {
		glog.Fatal(err)
	}
}

func writeVocab(path string, symbols *wfst.SymbolTable) {
	f, err := os.Create(path)
	if err != nil {
		glog.Fatal(err)
	}
	defer f.Close()
	for _, s := range symbols.Symbols()[1:] { // skip epsilon at index 0
		if _, err := f.WriteString(s + "\n"); err != nil {
			glog.Fatal(err)
		}
	}
}
