package expr

// Node is an expression AST node.
type Node interface {
	// Pos returns the byte offset of the node in the source.
	Pos() int
}

// Number is a numeric literal.
type Number struct {
	pos   int
	Value float64
}

func (n *Number) Pos() int { return n.pos }

// String is a string literal, used for frequency codes, aggregation methods
// and currency codes in function arguments.
type String struct {
	pos   int
	Value string
}

func (s *String) Pos() int { return s.pos }

// SeriesRef references a stored series by CODE or CODE:FIELD.
type SeriesRef struct {
	pos   int
	Code  string
	Field string
}

func (r *SeriesRef) Pos() int { return r.pos }

// Call invokes a transform function from the dispatch table.
type Call struct {
	pos  int
	Name string
	Args []Node
}

func (c *Call) Pos() int { return c.pos }

// BinOp is a binary arithmetic operation on series and/or scalars.
type BinOp struct {
	pos      int
	Op       byte // one of + - * /
	LHS, RHS Node
}

func (b *BinOp) Pos() int { return b.pos }

// Neg is unary minus.
type Neg struct {
	pos int
	X   Node
}

func (n *Neg) Pos() int { return n.pos }
