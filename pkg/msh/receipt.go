package msh

import (
	"github.com/beevik/etree"

	"github.com/sirosfoundation/as4core/pkg/message"
	"github.com/sirosfoundation/as4core/pkg/pmode"
)

// NsEbbp is the ebBP signals namespace used for non-repudiation receipts
const NsEbbp = "http://docs.oasis-open.org/ebxml-bp/ebbp-signals-2.0"

// buildReceipt assembles the receipt signal for an accepted message.
// When the original envelope was signed, the receipt carries
// NonRepudiationInformation echoing the signature's references.
func (p *Pipeline) buildReceipt(refMessageID string, envelopeXML []byte, pm *pmode.ProcessingMode) (*TransportMessage, error) {
	nri := buildNonRepudiationInfo(envelopeXML)
	sig := message.NewReceipt(refMessageID, nri)
	return p.packSignal(sig)
}

// buildNonRepudiationInfo copies every ds:Reference of the original
// signature into an ebbp:NonRepudiationInformation element. Returns nil
// for unsigned messages.
func buildNonRepudiationInfo(envelopeXML []byte) []byte {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(envelopeXML); err != nil {
		return nil
	}
	signedInfo := doc.FindElement("//*[local-name()='SignedInfo']")
	if signedInfo == nil {
		return nil
	}

	nri := etree.NewElement("ebbp:NonRepudiationInformation")
	nri.CreateAttr("xmlns:ebbp", NsEbbp)
	found := false
	for _, ref := range signedInfo.ChildElements() {
		if ref.Tag != "Reference" {
			continue
		}
		partInfo := nri.CreateElement("ebbp:MessagePartNRInformation")
		partInfo.AddChild(ref.Copy())
		found = true
	}
	if !found {
		return nil
	}

	out := etree.NewDocument()
	out.SetRoot(nri)
	data, err := out.WriteToBytes()
	if err != nil {
		return nil
	}
	return data
}
