package classifier

import (
	"fmt"
	"math"
	"math/rand"

	"spam-detector/internal/embedding"
	"spam-detector/internal/sequence"

	"github.com/viterin/vek"
	"github.com/vmihailenco/msgpack/v5"
)

const stateVersion = 1

// Options configures a Network
type Options struct {
	Hidden       int     // units in the hidden layer
	LearningRate float64 // SGD step
	BatchSize    int     // samples per update inside Fit, 0 means the whole batch
	Seed         int64   // weight initialisation
}

// DefaultOptions: 128 sigmoid units, SGD at 0.01 over mini-batches of 32
func DefaultOptions() Options {
	return Options{Hidden: 128, LearningRate: 0.01, BatchSize: 32, Seed: 1}
}

// Network is a frozen embedding lookup, flattened, followed by a sigmoid
// hidden layer and a single sigmoid output, trained with SGD on squared error.
type Network struct {
	maxLen    int
	dim       int
	hidden    int
	embedding *embedding.Matrix

	w1 []float64 // hidden x (maxLen*dim), row-major
	b1 []float64
	w2 []float64
	b2 float64

	lr        float64
	batchSize int
}

var _ Classifier = (*Network)(nil)

// NewNetwork creates a randomly initialised network over a fixed embedding matrix
func NewNetwork(emb *embedding.Matrix, maxLen int, opts Options) (*Network, error) {
	if emb == nil || emb.Rows() == 0 || emb.Cols() == 0 {
		return nil, fmt.Errorf("classifier: empty embedding matrix")
	}
	if maxLen < 0 {
		return nil, fmt.Errorf("classifier: negative maxlen %d", maxLen)
	}
	if opts.Hidden <= 0 || opts.LearningRate <= 0 || opts.BatchSize < 0 {
		return nil, fmt.Errorf("classifier: invalid options %+v", opts)
	}

	n := &Network{
		maxLen:    maxLen,
		dim:       emb.Cols(),
		hidden:    opts.Hidden,
		embedding: emb,
		lr:        opts.LearningRate,
		batchSize: opts.BatchSize,
	}
	in := n.inputs()
	n.w1 = make([]float64, n.hidden*in)
	n.b1 = make([]float64, n.hidden)
	n.w2 = make([]float64, n.hidden)

	// Glorot uniform
	rng := rand.New(rand.NewSource(opts.Seed))
	limit1 := math.Sqrt(6 / float64(in+n.hidden))
	for i := range n.w1 {
		n.w1[i] = (rng.Float64()*2 - 1) * limit1
	}
	limit2 := math.Sqrt(6 / float64(n.hidden+1))
	for i := range n.w2 {
		n.w2[i] = (rng.Float64()*2 - 1) * limit2
	}

	return n, nil
}

// MaxLen returns the input width the network was built for
func (n *Network) MaxLen() int { return n.maxLen }

// Dim returns the embedding width
func (n *Network) Dim() int { return n.dim }

// VocabRows returns the number of embedding rows (vocabulary size + 1)
func (n *Network) VocabRows() int { return n.embedding.Rows() }

func (n *Network) inputs() int { return n.maxLen * n.dim }

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func (n *Network) validate(batch sequence.Batch) error {
	if batch.Width != n.maxLen {
		return fmt.Errorf("%w: batch width %d, model expects %d", ErrShapeMismatch, batch.Width, n.maxLen)
	}
	rows := n.embedding.Rows()
	for i, row := range batch.Rows {
		if len(row) != n.maxLen {
			return fmt.Errorf("%w: row %d has %d ids, model expects %d", ErrShapeMismatch, i, len(row), n.maxLen)
		}
		for _, id := range row {
			if id < 0 || id >= rows {
				return fmt.Errorf("%w: id %d outside embedding rows %d", ErrShapeMismatch, id, rows)
			}
		}
	}
	return nil
}

// forward fills the hidden activations into a and returns the output score.
// Padding and zero rows contribute nothing, so they are skipped.
func (n *Network) forward(row []int, a []float64) float64 {
	in := n.inputs()
	for j := 0; j < n.hidden; j++ {
		z := n.b1[j]
		w := n.w1[j*in : (j+1)*in]
		for t, id := range row {
			if id == sequence.Padding {
				continue
			}
			z += vek.Dot(w[t*n.dim:(t+1)*n.dim], n.embedding.Row(id))
		}
		a[j] = sigmoid(z)
	}
	return sigmoid(n.b2 + vek.Dot(n.w2, a))
}

// Fit runs one pass over the batch in order, updating after every BatchSize samples
func (n *Network) Fit(batch sequence.Batch, labels []float64) error {
	if len(labels) != batch.Len() {
		return fmt.Errorf("%w: %d labels for %d rows", ErrShapeMismatch, len(labels), batch.Len())
	}
	if err := n.validate(batch); err != nil {
		return err
	}

	step := n.batchSize
	if step == 0 || step > batch.Len() {
		step = batch.Len()
	}
	if step == 0 {
		return nil
	}

	gw1 := make([]float64, len(n.w1))
	gb1 := make([]float64, n.hidden)
	gw2 := make([]float64, n.hidden)
	a := make([]float64, n.hidden)
	in := n.inputs()

	for start := 0; start < batch.Len(); start += step {
		end := start + step
		if end > batch.Len() {
			end = batch.Len()
		}
		size := float64(end - start)

		clear(gw1)
		clear(gb1)
		clear(gw2)
		gb2 := 0.0

		for i := start; i < end; i++ {
			row := batch.Rows[i]
			y := n.forward(row, a)

			// d(mean squared error)/dz at the output
			dz2 := 2 * (y - labels[i]) / size * y * (1 - y)
			gb2 += dz2
			for j := 0; j < n.hidden; j++ {
				gw2[j] += dz2 * a[j]

				dz1 := dz2 * n.w2[j] * a[j] * (1 - a[j])
				if dz1 == 0 {
					continue
				}
				gb1[j] += dz1
				g := gw1[j*in : (j+1)*in]
				for t, id := range row {
					if id == sequence.Padding {
						continue
					}
					e := n.embedding.Row(id)
					base := t * n.dim
					for k, x := range e {
						g[base+k] += dz1 * x
					}
				}
			}
		}

		for i, g := range gw1 {
			n.w1[i] -= n.lr * g
		}
		for j := 0; j < n.hidden; j++ {
			n.b1[j] -= n.lr * gb1[j]
			n.w2[j] -= n.lr * gw2[j]
		}
		n.b2 -= n.lr * gb2
	}

	return nil
}

// Predict scores every row. It only reads parameters and is safe for
// concurrent use as long as Fit is not running.
func (n *Network) Predict(batch sequence.Batch) ([]float64, error) {
	if err := n.validate(batch); err != nil {
		return nil, err
	}
	a := make([]float64, n.hidden)
	scores := make([]float64, batch.Len())
	for i, row := range batch.Rows {
		scores[i] = n.forward(row, a)
	}
	return scores, nil
}

// Loss returns the mean squared error on a labeled batch
func (n *Network) Loss(batch sequence.Batch, labels []float64) (float64, error) {
	if len(labels) != batch.Len() {
		return 0, fmt.Errorf("%w: %d labels for %d rows", ErrShapeMismatch, len(labels), batch.Len())
	}
	scores, err := n.Predict(batch)
	if err != nil {
		return 0, err
	}
	if len(scores) == 0 {
		return 0, nil
	}
	sum := 0.0
	for i, s := range scores {
		d := s - labels[i]
		sum += d * d
	}
	return sum / float64(len(scores)), nil
}

type networkState struct {
	Version      int       `msgpack:"version"`
	MaxLen       int       `msgpack:"max_len"`
	Dim          int       `msgpack:"dim"`
	Hidden       int       `msgpack:"hidden"`
	VocabRows    int       `msgpack:"vocab_rows"`
	Embedding    []float64 `msgpack:"embedding"`
	W1           []float64 `msgpack:"w1"`
	B1           []float64 `msgpack:"b1"`
	W2           []float64 `msgpack:"w2"`
	B2           float64   `msgpack:"b2"`
	LearningRate float64   `msgpack:"learning_rate"`
	BatchSize    int       `msgpack:"batch_size"`
}

// MarshalBinary encodes the full model, embedding matrix included
func (n *Network) MarshalBinary() ([]byte, error) {
	return msgpack.Marshal(&networkState{
		Version:      stateVersion,
		MaxLen:       n.maxLen,
		Dim:          n.dim,
		Hidden:       n.hidden,
		VocabRows:    n.embedding.Rows(),
		Embedding:    n.embedding.Data(),
		W1:           n.w1,
		B1:           n.b1,
		W2:           n.w2,
		B2:           n.b2,
		LearningRate: n.lr,
		BatchSize:    n.batchSize,
	})
}

// UnmarshalBinary replaces the model with a previously encoded one
func (n *Network) UnmarshalBinary(data []byte) error {
	var st networkState
	if err := msgpack.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("classifier: decode model: %w", err)
	}
	if st.Version != stateVersion {
		return fmt.Errorf("classifier: unsupported model version %d", st.Version)
	}
	if st.Hidden <= 0 || st.Dim <= 0 || st.MaxLen < 0 || st.VocabRows <= 0 {
		return fmt.Errorf("%w: invalid model dimensions", ErrShapeMismatch)
	}
	if len(st.W1) != st.Hidden*st.MaxLen*st.Dim || len(st.B1) != st.Hidden || len(st.W2) != st.Hidden {
		return fmt.Errorf("%w: parameter sizes do not match dimensions", ErrShapeMismatch)
	}
	emb, err := embedding.MatrixFromData(st.VocabRows, st.Dim, st.Embedding)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrShapeMismatch, err)
	}

	*n = Network{
		maxLen:    st.MaxLen,
		dim:       st.Dim,
		hidden:    st.Hidden,
		embedding: emb,
		w1:        st.W1,
		b1:        st.B1,
		w2:        st.W2,
		b2:        st.B2,
		lr:        st.LearningRate,
		batchSize: st.BatchSize,
	}
	return nil
}

// Load decodes a model blob produced by MarshalBinary
func Load(data []byte) (*Network, error) {
	n := &Network{}
	if err := n.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return n, nil
}
