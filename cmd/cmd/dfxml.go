// Copyright (c) 2025 Stefano Scafiti
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
package cmd

import (
	"path/filepath"

	"github.com/ostafen/diglet/internal/carve"
	"github.com/ostafen/diglet/pkg/dfxml"
)

// newDFXMLHeader builds the DFXML document header for a recover run against
// source, mirroring the fields the teacher's report writer always filled in.
func newDFXMLHeader(source string) dfxml.DFXMLHeader {
	return dfxml.DFXMLHeader{
		XmlOutput: dfxml.XmlOutputVersion,
		Metadata:  dfxml.DefaultMetadata,
		Creator: dfxml.Creator{
			Package:              AppName,
			Version:              "1.0",
			ExecutionEnvironment: dfxml.GetExecEnv(),
		},
		Source: dfxml.Source{
			ImageFilename: source,
		},
	}
}

// recoveredFileToDFXML renders one carved file as a DFXML fileobject. A BGC
// splice (Second != nil) is reported as two byte_run entries, matching how
// DFXML already models multi-fragment files.
func recoveredFileToDFXML(rf carve.RecoveredFile, path string) dfxml.FileObject {
	runs := []dfxml.ByteRun{{
		Offset:    0,
		ImgOffset: rf.First.Offset,
		Length:    rf.First.Length,
	}}
	if rf.Second != nil {
		runs = append(runs, dfxml.ByteRun{
			Offset:    rf.First.Length,
			ImgOffset: rf.Second.Offset,
			Length:    rf.Second.Length,
		})
	}

	return dfxml.FileObject{
		Filename: filepath.Base(path),
		FileSize: rf.Length(),
		ByteRuns: dfxml.ByteRuns{Runs: runs},
	}
}
