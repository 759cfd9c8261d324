package blockimage

// Image is a fixed size byte array on which a file system is stored.
// Changes made to the byte array returned by Bytes() are persisted by
// calling Sync().
type Image interface {
	Bytes() []byte
	Sync() error
	Close() error
}

type memoryImage struct {
	data []byte
}

// NewMemoryImage creates an Image that is only backed by memory. Its
// contents are lost when the process terminates, unless they are
// exported as a snapshot.
func NewMemoryImage(sizeBytes int) Image {
	return &memoryImage{
		data: make([]byte, sizeBytes),
	}
}

func (i *memoryImage) Bytes() []byte {
	return i.data
}

func (i *memoryImage) Sync() error {
	return nil
}

func (i *memoryImage) Close() error {
	i.data = nil
	return nil
}
