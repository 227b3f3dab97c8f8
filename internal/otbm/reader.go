package otbm

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Node узел дерева после снятия экранирования
type Node struct {
	Type     NodeType
	Offset   int // смещение байта начала узла в файле
	Data     []byte
	Children []*Node
}

// ParseTree разбирает файл в дерево узлов: проверяет идентификатор и снимает экранирование
func ParseTree(data []byte) (*Node, error) {
	if len(data) < len(Identifier) {
		return nil, fmt.Errorf("%w: файл короче идентификатора", ErrBadIdentifier)
	}
	ident := [4]byte(data[:4])
	if ident != Identifier && ident != [4]byte{} {
		return nil, fmt.Errorf("%w: %q", ErrBadIdentifier, data[:4])
	}

	pos := len(Identifier)
	if pos >= len(data) || data[pos] != NodeStart {
		return nil, fmt.Errorf("%w: ожидался начальный байт узла (pos=%d)", ErrMalformed, pos)
	}

	var (
		root  *Node
		stack []*Node
	)
	for pos < len(data) {
		b := data[pos]
		switch b {
		case NodeStart:
			if pos+1 >= len(data) {
				return nil, fmt.Errorf("%w: обрыв после начала узла (pos=%d)", ErrMalformed, pos)
			}
			node := &Node{Type: NodeType(data[pos+1]), Offset: pos}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("%w: второй корневой узел (pos=%d)", ErrMalformed, pos)
				}
				root = node
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, node)
			}
			stack = append(stack, node)
			pos += 2

		case NodeEnd:
			if len(stack) == 0 {
				return nil, fmt.Errorf("%w: лишний конец узла (pos=%d)", ErrMalformed, pos)
			}
			stack = stack[:len(stack)-1]
			pos++

		default:
			if len(stack) == 0 {
				return nil, fmt.Errorf("%w: данные после корневого узла (pos=%d)", ErrMalformed, pos)
			}
			if b == NodeEscape {
				pos++
				if pos >= len(data) {
					return nil, fmt.Errorf("%w: обрыв после экранирования (pos=%d)", ErrMalformed, pos)
				}
			}
			node := stack[len(stack)-1]
			if len(node.Children) > 0 {
				return nil, fmt.Errorf("%w: данные узла %s после дочерних узлов (pos=%d)", ErrMalformed, node.Type, pos)
			}
			node.Data = append(node.Data, data[pos])
			pos++
		}
	}

	if len(stack) != 0 {
		return nil, fmt.Errorf("%w: не закрыто узлов: %d", ErrMalformed, len(stack))
	}
	return root, nil
}

// propReader последовательно читает поля данных узла (little-endian)
type propReader struct {
	node *Node
	data []byte
	pos  int
}

func newPropReader(n *Node) *propReader {
	return &propReader{node: n, data: n.Data}
}

func (r *propReader) remaining() int { return len(r.data) - r.pos }

func (r *propReader) need(op string, n int) error {
	if r.remaining() < n {
		return fmt.Errorf("%s: %w в узле %s@%d (pos=%d, len=%d)", op, ErrTruncated, r.node.Type, r.node.Offset, r.pos, len(r.data))
	}
	return nil
}

func (r *propReader) readU8() (uint8, error) {
	if err := r.need("readU8", 1); err != nil {
		return 0, err
	}
	v := r.data[r.pos]
	r.pos++
	return v, nil
}

func (r *propReader) readU16() (uint16, error) {
	if err := r.need("readU16", 2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *propReader) readU32() (uint32, error) {
	if err := r.need("readU32", 4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *propReader) readU64() (uint64, error) {
	if err := r.need("readU64", 8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.data[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *propReader) readF64() (float64, error) {
	v, err := r.readU64()
	return math.Float64frombits(v), err
}

func (r *propReader) readBytes(op string, n int) ([]byte, error) {
	if err := r.need(op, n); err != nil {
		return nil, err
	}
	v := r.data[r.pos : r.pos+n]
	r.pos += n
	return v, nil
}

func (r *propReader) readString() (string, error) {
	n, err := r.readU16()
	if err != nil {
		return "", err
	}
	b, err := r.readBytes("readString", int(n))
	return string(b), err
}

func (r *propReader) readLongString() (string, error) {
	n, err := r.readU32()
	if err != nil {
		return "", err
	}
	if uint64(n) > uint64(r.remaining()) {
		return "", fmt.Errorf("readLongString: %w в узле %s@%d (нужно %d, осталось %d)", ErrTruncated, r.node.Type, r.node.Offset, n, r.remaining())
	}
	b, err := r.readBytes("readLongString", int(n))
	return string(b), err
}
