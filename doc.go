// Package nnsplit provides hierarchical text segmentation (sentences, tokens,
// compound constituents) driven by per-byte probabilities from nnsplit ONNX
// models.
//
// # Quick Start
//
//	sp, err := nnsplit.New("model.onnx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sp.Close()
//
//	splits, err := sp.Split(ctx, []string{"This is a test This is another test."})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, sentence := range splits[0].Parts {
//	    fmt.Printf("%q\n", sentence.Text)
//	}
//
// Models can also be loaded by name. They are fetched once and cached:
//
//	sp, err := nnsplit.Load(ctx, "en", nnsplit.WithCacheDir("/tmp/nnsplit"))
//
// # Pipeline
//
// Texts are encoded to bytes, padded and cut into overlapping windows
// (EncodeWindows). The model labels every window position with one
// probability per level. Overlapping predictions are averaged back into one
// Curve per text (Reconstruct), and each text is carved into a Split tree
// (SplitSequence.Build) wherever a level's probability exceeds the threshold.
// The leaves of every tree concatenate to exactly the input text.
//
// # Thread Safety
//
// Splitter is safe for concurrent use. Options and SplitSequence are values
// that are never mutated after construction. Inference runs on an internal
// pool of ONNX sessions, configurable via WithPoolSize.
//
// # Model Files
//
// Pretrained models are published at https://github.com/bminixhofer/nnsplit
// under models/<lang>/model.onnx.
package nnsplit
