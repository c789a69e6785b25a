/*
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

     https://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package layers

import (
	"errors"
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"jinr.ru/greenlab/go-encoder/pkg/encoder"
)

const (
	// EncoderReadLayerNum identifies the layer of the buffer received from the FPGA
	EncoderReadLayerNum = 2010
	// EncoderWriteLayerNum identifies the layer of the buffer sent to the FPGA
	EncoderWriteLayerNum = 2011
)

var EncoderReadLayerType = gopacket.RegisterLayerType(EncoderReadLayerNum,
	gopacket.LayerTypeMetadata{Name: "EncoderRead", Decoder: gopacket.DecodeFunc(decodeEncoderReadLayer)})

var EncoderWriteLayerType = gopacket.RegisterLayerType(EncoderWriteLayerNum,
	gopacket.LayerTypeMetadata{Name: "EncoderWrite", Decoder: gopacket.DecodeFunc(decodeEncoderWriteLayer)})

// EncoderReadLayer is the encoder part of the read buffer: the shared index
// pulse register followed by the raw counts of every channel
type EncoderReadLayer struct {
	layers.BaseLayer
	IndexPulse []bool
	Counts     []int32
}

// LayerType returns the type of the encoder read layer in the layer catalog
func (l *EncoderReadLayer) LayerType() gopacket.LayerType {
	return EncoderReadLayerType
}

// NumChannels returns the number of channels in the layer
func (l *EncoderReadLayer) NumChannels() int {
	return len(l.Counts)
}

// Serialize writes the layer into buf, which must be encoder.ReadBufferSize bytes long
func (l *EncoderReadLayer) Serialize(buf []byte) {
	cur := encoder.NewCursor(buf)
	encoder.EncodeFlags(cur, l.IndexPulse)
	for _, c := range l.Counts {
		encoder.EncodeCount(cur, c)
	}
}

// SerializeTo serializes the layer into bytes and writes the bytes to the SerializeBuffer
func (l *EncoderReadLayer) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	if len(l.IndexPulse) != len(l.Counts) {
		return fmt.Errorf("Index pulse bits (%d) do not match counts records (%d)", len(l.IndexPulse), len(l.Counts))
	}
	bytes, err := b.AppendBytes(encoder.ReadBufferSize(len(l.Counts)))
	if err != nil {
		return err
	}
	l.Serialize(bytes)
	return nil
}

// DecodeFromBytes decodes the layer for numChannels channels
func (l *EncoderReadLayer) DecodeFromBytes(data []byte, numChannels int, df gopacket.DecodeFeedback) error {
	size := encoder.ReadBufferSize(numChannels)
	if len(data) < size {
		df.SetTruncated()
		return errors.New("Encoder read buffer too short")
	}
	l.BaseLayer = layers.BaseLayer{
		Contents: data[:size],
		Payload:  data[size:],
	}
	l.IndexPulse = make([]bool, numChannels)
	l.Counts = make([]int32, numChannels)
	cur := encoder.NewCursor(data)
	encoder.DecodeIndexPulse(cur, l.IndexPulse)
	encoder.DecodeChannelCounts(cur, l.Counts)
	return nil
}

func decodeEncoderReadLayer(data []byte, p gopacket.PacketBuilder) error {
	n, ok := encoder.ChannelsForReadSize(len(data))
	if !ok {
		return fmt.Errorf("No channel count matches an encoder read buffer of %d bytes", len(data))
	}
	l := &EncoderReadLayer{}
	if err := l.DecodeFromBytes(data, n, p); err != nil {
		return err
	}
	p.AddLayer(l)
	return nil
}

// EncoderWriteLayer is the encoder part of the write buffer: the shared index
// enable register followed by the shared reset index pulse register
type EncoderWriteLayer struct {
	layers.BaseLayer
	IndexEnable     []bool
	ResetIndexPulse []bool
}

// LayerType returns the type of the encoder write layer in the layer catalog
func (l *EncoderWriteLayer) LayerType() gopacket.LayerType {
	return EncoderWriteLayerType
}

// Serialize writes the layer into buf, which must be encoder.WriteBufferSize bytes long
func (l *EncoderWriteLayer) Serialize(buf []byte) {
	cur := encoder.NewCursor(buf)
	encoder.EncodeIndexEnable(cur, l.IndexEnable)
	encoder.EncodeResetIndexPulse(cur, l.ResetIndexPulse)
}

// SerializeTo serializes the layer into bytes and writes the bytes to the SerializeBuffer
func (l *EncoderWriteLayer) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	if len(l.IndexEnable) != len(l.ResetIndexPulse) {
		return fmt.Errorf("Index enable bits (%d) do not match reset index pulse bits (%d)", len(l.IndexEnable), len(l.ResetIndexPulse))
	}
	bytes, err := b.AppendBytes(encoder.WriteBufferSize(len(l.IndexEnable)))
	if err != nil {
		return err
	}
	l.Serialize(bytes)
	return nil
}

// DecodeFromBytes decodes the layer for numChannels channels
func (l *EncoderWriteLayer) DecodeFromBytes(data []byte, numChannels int, df gopacket.DecodeFeedback) error {
	size := encoder.WriteBufferSize(numChannels)
	if len(data) < size {
		df.SetTruncated()
		return errors.New("Encoder write buffer too short")
	}
	l.BaseLayer = layers.BaseLayer{
		Contents: data[:size],
		Payload:  data[size:],
	}
	l.IndexEnable = make([]bool, numChannels)
	l.ResetIndexPulse = make([]bool, numChannels)
	cur := encoder.NewCursor(data)
	encoder.DecodeFlags(cur, l.IndexEnable)
	encoder.DecodeFlags(cur, l.ResetIndexPulse)
	return nil
}

// The write buffer does not tell how many channels it carries, so without a
// channel count every bit of both registers is decoded, padding included.
func decodeEncoderWriteLayer(data []byte, p gopacket.PacketBuilder) error {
	if len(data)%(2*encoder.WordSize) != 0 {
		return fmt.Errorf("Encoder write buffer of %d bytes is not two whole registers", len(data))
	}
	l := &EncoderWriteLayer{}
	if err := l.DecodeFromBytes(data, len(data)/2*8, p); err != nil {
		return err
	}
	p.AddLayer(l)
	return nil
}

// DecodeReadFrame decodes a read buffer. The channel count is derived from the
// buffer size.
func DecodeReadFrame(data []byte) (*EncoderReadLayer, error) {
	packet := gopacket.NewPacket(data, EncoderReadLayerType, gopacket.Default)
	if errLayer := packet.ErrorLayer(); errLayer != nil {
		return nil, errLayer.Error()
	}
	l, ok := packet.Layer(EncoderReadLayerType).(*EncoderReadLayer)
	if !ok {
		return nil, errors.New("Encoder read layer not found")
	}
	return l, nil
}

// DecodeWriteFrame decodes a write buffer for numChannels channels
func DecodeWriteFrame(data []byte, numChannels int) (*EncoderWriteLayer, error) {
	l := &EncoderWriteLayer{}
	if err := l.DecodeFromBytes(data, numChannels, gopacket.NilDecodeFeedback); err != nil {
		return nil, err
	}
	return l, nil
}

// SerializeReadFrame builds a read buffer from index pulse bits and raw counts
func SerializeReadFrame(indexPulse []bool, counts []int32) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	l := &EncoderReadLayer{IndexPulse: indexPulse, Counts: counts}
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{}, l); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SerializeWriteFrame builds a write buffer from index enable and reset index pulse bits
func SerializeWriteFrame(indexEnable, resetIndexPulse []bool) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	l := &EncoderWriteLayer{IndexEnable: indexEnable, ResetIndexPulse: resetIndexPulse}
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{}, l); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
